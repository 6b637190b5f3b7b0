package header

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Disposition types.
const (
	Inline     = "inline"
	Attachment = "attachment"
	FormData   = "form-data"
)

// Disposition is a parsed Content-Disposition (RFC 6266). Filename holds
// the decoded filename* value when present, else filename.
type Disposition struct {
	Type     string
	Filename string
	Params   map[string]string
}

// ParseDisposition parses a Content-Disposition value, decoding RFC 5987
// extended parameters.
func ParseDisposition(s string) (Disposition, error) {
	t, params, err := mime.ParseMediaType(s)
	if err != nil {
		return Disposition{}, ErrMalformed
	}

	d := Disposition{Type: t, Params: params}
	if fn, ok := params["filename"]; ok {
		d.Filename = fn
		delete(d.Params, "filename")
	}

	return d, nil
}

// SafeFilename returns the base of Filename, stripped of any directory
// components a server may have sent.
func (d Disposition) SafeFilename() string {
	fn := strings.ReplaceAll(d.Filename, `\`, "/")
	fn = path.Base(fn)
	if fn == "." || fn == "/" || fn == ".." {
		return ""
	}

	return fn
}

// IsAttachment reports whether the content is meant to be saved.
func (d Disposition) IsAttachment() bool { return d.Type == Attachment }

// String renders the header value. Non-ASCII filenames are emitted in
// the extended form:
//
//	attachment; filename*=utf-8''%E2%82%AC%20rates.pdf
func (d Disposition) String() string {
	params := make(map[string]string, len(d.Params)+1)
	for k, v := range d.Params {
		params[k] = v
	}
	if d.Filename != "" {
		params["filename"] = d.Filename
	}

	return mime.FormatMediaType(d.Type, params)
}

// ContentDisposition returns the parsed Content-Disposition field.
func ContentDisposition(h http.Header) (Disposition, bool) {
	v := h.Get("Content-Disposition")
	if v == "" {
		return Disposition{}, false
	}

	d, err := ParseDisposition(v)
	if err != nil {
		return Disposition{}, false
	}

	return d, true
}
