// Package header provides typed, read-only views over HTTP header fields.
// Every accessor parses on demand and reports false when the field is
// absent or malformed.
package header

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned by the Parse functions for unparsable values.
var ErrMalformed = errors.New("malformed header value")

// EntityTag is a parsed ETag (RFC 9110 8.8.3).
type EntityTag struct {
	Tag  string
	Weak bool
}

// ParseEntityTag parses `"xyz"` or `W/"xyz"`.
func ParseEntityTag(s string) (EntityTag, error) {
	s = strings.TrimSpace(s)

	var et EntityTag
	if rest, ok := strings.CutPrefix(s, "W/"); ok {
		et.Weak = true
		s = rest
	}

	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return EntityTag{}, ErrMalformed
	}

	tag := s[1 : len(s)-1]
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if c == '"' || c < 0x21 || c == 0x7f {
			return EntityTag{}, ErrMalformed
		}
	}
	et.Tag = tag

	return et, nil
}

// String renders the tag in header form.
func (e EntityTag) String() string {
	if e.Weak {
		return `W/"` + e.Tag + `"`
	}

	return `"` + e.Tag + `"`
}

// StrongMatch compares both tags as strong validators.
func (e EntityTag) StrongMatch(o EntityTag) bool {
	return !e.Weak && !o.Weak && e.Tag == o.Tag
}

// WeakMatch compares the opaque tags ignoring weakness.
func (e EntityTag) WeakMatch(o EntityTag) bool {
	return e.Tag == o.Tag
}

// ETag returns the parsed ETag field.
func ETag(h http.Header) (EntityTag, bool) {
	v := h.Get("ETag")
	if v == "" {
		return EntityTag{}, false
	}

	et, err := ParseEntityTag(v)
	if err != nil {
		return EntityTag{}, false
	}

	return et, true
}

// LastModified returns the Last-Modified field in UTC.
func LastModified(h http.Header) (time.Time, bool) {
	return dateField(h, "Last-Modified")
}

// Date returns the Date field in UTC.
func Date(h http.Header) (time.Time, bool) {
	return dateField(h, "Date")
}

func dateField(h http.Header, name string) (time.Time, bool) {
	v := h.Get(name)
	if v == "" {
		return time.Time{}, false
	}

	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}

	return t.UTC(), true
}

// FormatTime renders t as an IMF-fixdate for conditional request fields.
func FormatTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// MediaType is a parsed Content-Type.
type MediaType struct {
	// Type is the lower-cased type/subtype.
	Type   string
	Params map[string]string
}

// Charset returns the charset parameter, if any.
func (m MediaType) Charset() string { return m.Params["charset"] }

func (m MediaType) String() string { return mime.FormatMediaType(m.Type, m.Params) }

// ContentType returns the parsed Content-Type field.
func ContentType(h http.Header) (MediaType, bool) {
	v := h.Get("Content-Type")
	if v == "" {
		return MediaType{}, false
	}

	t, params, err := mime.ParseMediaType(v)
	if err != nil {
		return MediaType{}, false
	}

	return MediaType{Type: t, Params: params}, true
}

// ContentLength returns the Content-Length field.
func ContentLength(h http.Header) (int64, bool) {
	v := strings.TrimSpace(h.Get("Content-Length"))
	if v == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// ContentEncoding lists the codings of the Content-Encoding fields in
// application order, lower-cased.
func ContentEncoding(h http.Header) []string {
	var out []string
	for _, v := range h.Values("Content-Encoding") {
		for tok := range strings.SplitSeq(v, ",") {
			if tok = strings.ToLower(strings.TrimSpace(tok)); tok != "" {
				out = append(out, tok)
			}
		}
	}

	return out
}

// Cookies parses every Set-Cookie field. Malformed fields are skipped.
func Cookies(h http.Header) []*http.Cookie {
	var out []*http.Cookie
	for _, v := range h.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(v)
		if err != nil {
			continue
		}
		out = append(out, c)
	}

	return out
}
