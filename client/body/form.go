package body

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// Pair is one key/value of an ordered form or query.
type Pair struct {
	Key   string
	Value string
}

// Form returns an application/x-www-form-urlencoded Body. Pair order is
// preserved and duplicate keys are kept.
func Form(pairs ...Pair) Body {
	return &bytesBody{
		data:        []byte(EncodeForm(pairs)),
		contentType: "application/x-www-form-urlencoded",
		kind:        KindForm,
	}
}

// EncodeForm renders pairs as key=value joined by '&', percent-encoding
// each key and value with '+' for spaces.
func EncodeForm(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	return b.String()
}

// DecodeForm parses an encoded form back into ordered pairs.
func DecodeForm(s string) ([]Pair, error) {
	if s == "" {
		return nil, nil
	}

	var pairs []Pair
	for seg := range strings.SplitSeq(s, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")

		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("decoding key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("decoding value of %q: %w", key, err)
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}

	return pairs, nil
}

// JSON serializes v and returns an application/json Body.
func JSON(v any) (Body, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindBody, errs.ErrEncodingFailed, err, "marshaling json")
	}

	return &bytesBody{data: b, contentType: "application/json", kind: KindStructured}, nil
}
