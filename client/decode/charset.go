package decode

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// DefaultCharset is assumed when a response declares none and sniffing
// doesn't apply.
const DefaultCharset = "utf-8"

// Charset converts text in a labelled encoding to UTF-8. Strict decoding
// fails on any byte sequence the encoding can't map; lossy decoding
// substitutes U+FFFD instead.
type Charset interface {
	Decode(b []byte, label string, lossy bool) (string, error)
}

// WHATWG resolves labels through the WHATWG encoding index, the table
// browsers use.
type WHATWG struct{}

func (WHATWG) Decode(b []byte, label string, lossy bool) (string, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", &errs.Error{
			Kind:   errs.KindDecode,
			Err:    errs.ErrCharsetDecodeFailed,
			Detail: fmt.Sprintf("unknown charset %q", label),
			Cause:  err,
			Data:   b,
		}
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &errs.Error{Kind: errs.KindDecode, Err: errs.ErrCharsetDecodeFailed, Detail: label, Cause: err, Data: b}
	}

	if !lossy && substituted(enc, b, out) {
		return "", &errs.Error{
			Kind:   errs.KindDecode,
			Err:    errs.ErrCharsetDecodeFailed,
			Detail: fmt.Sprintf("invalid %s byte sequence", label),
			Data:   b,
		}
	}

	return string(out), nil
}

// substituted reports whether the decoder emitted U+FFFD for input it
// couldn't map, as opposed to a U+FFFD genuinely present in src.
func substituted(enc encoding.Encoding, src, out []byte) bool {
	got := bytes.Count(out, []byte(string(utf8.RuneError)))
	if got == 0 {
		return false
	}

	encoded, err := enc.NewEncoder().Bytes([]byte(string(utf8.RuneError)))
	if err != nil || len(encoded) == 0 {
		return true
	}

	return got > bytes.Count(src, encoded)
}

// Label picks the charset for a body of the given Content-Type. A
// declared charset parameter wins; HTML without one is sniffed from its
// BOM and <meta> tags; anything else is DefaultCharset.
func Label(contentType string, content []byte) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		if cs := strings.TrimSpace(params["charset"]); cs != "" {
			return strings.ToLower(cs)
		}
	}

	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		if _, name, _ := charset.DetermineEncoding(content, contentType); name != "" {
			return name
		}
	}

	return DefaultCharset
}
