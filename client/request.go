package client

import (
	"encoding/base64"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/http/httpguts"

	"github.com/adamwoolhether/reqflow/client/body"
	"github.com/adamwoolhether/reqflow/client/errs"
	"github.com/adamwoolhether/reqflow/client/header"
	"github.com/adamwoolhether/reqflow/internal/validate"
)

// repeatable lists fields that may appear more than once. Every other
// field set on a Request replaces earlier values of the same name.
var repeatable = map[string]bool{
	"Set-Cookie": true,
	"Via":        true,
	"Warning":    true,
	"Link":       true,
}

// methodsWithEmptyLength carry an explicit Content-Length: 0 when empty.
var methodsWithEmptyLength = map[string]bool{
	http.MethodPost: true,
	http.MethodPut:  true,
}

// Request is an immutable, validated description of one exchange.
// Build one with [NewRequest] or a method shorthand such as [Get].
type Request struct {
	method     string
	url        *url.URL
	header     http.Header
	body       body.Body
	override   override
	extensions map[any]any
}

// override holds per-request replacements for Client configuration.
type override struct {
	MaxRedirects *int           `yaml:"max_redirects" validate:"omitnil,gte=0,lte=100"`
	Follow       *bool          `yaml:"follow_redirects"`
	Timeout      *time.Duration `yaml:"timeout" validate:"omitnil,gte=0"`
}

// Method returns the request method.
func (r *Request) Method() string { return r.method }

// URL returns a copy of the target.
func (r *Request) URL() *url.URL {
	u := *r.url
	return &u
}

// Header returns a copy of the request header.
func (r *Request) Header() http.Header { return r.header.Clone() }

// Body returns the request body.
func (r *Request) Body() body.Body { return r.body }

// Extension returns the value stored under key with [WithExtension].
func (r *Request) Extension(key any) (any, bool) {
	v, ok := r.extensions[key]
	return v, ok
}

// NewRequest validates method, target and opts and returns the Request
// they describe. At most one body option may be given; without one the
// body is empty. All failures are *errs.Error values of KindBuilder.
func NewRequest(method, target string, opts ...RequestOption) (*Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidMethod, fmt.Sprintf("%q", method))
	}

	u, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	settings := requestOpts{header: make(http.Header)}
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, fmt.Errorf("applying request option: %w", err)
		}
	}

	if err := validate.Check(settings.override); err != nil {
		return nil, errs.Wrap(errs.KindBuilder, errs.ErrInvalidOption, err, "request override")
	}

	if len(settings.query) > 0 {
		q := body.EncodeForm(settings.query)
		if u.RawQuery != "" {
			q = u.RawQuery + "&" + q
		}
		u.RawQuery = q
	}

	b := settings.body
	if b == nil {
		b = body.Empty()
	}

	if err := frame(settings.header, method, b); err != nil {
		return nil, err
	}

	req := Request{
		method:   method,
		url:      u,
		header:   settings.header,
		body:     b,
		override: settings.override,
	}
	if len(settings.extensions) > 0 {
		req.extensions = maps.Clone(settings.extensions)
	}

	return &req, nil
}

// Get builds a GET request for target.
func Get(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodGet, target, opts...)
}

// Head builds a HEAD request for target.
func Head(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodHead, target, opts...)
}

// Delete builds a DELETE request for target.
func Delete(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodDelete, target, opts...)
}

// Post builds a POST request for target.
func Post(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodPost, target, opts...)
}

// Put builds a PUT request for target.
func Put(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodPut, target, opts...)
}

// Patch builds a PATCH request for target.
func Patch(target string, opts ...RequestOption) (*Request, error) {
	return NewRequest(http.MethodPatch, target, opts...)
}

func parseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errs.Wrap(errs.KindBuilder, errs.ErrInvalidURI, err, "")
	}

	switch {
	case u.Scheme == "":
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidURI, fmt.Sprintf("%q is not absolute", target))
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, errs.New(errs.KindBuilder, errs.ErrUnsupportedScheme, fmt.Sprintf("scheme %q", u.Scheme))
	case u.Host == "" || u.Hostname() == "":
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidURI, fmt.Sprintf("%q has no host", target))
	case u.User != nil:
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidURI, "credentials in uri, use WithBasicAuth")
	}

	return u, nil
}

// frame makes the length headers agree with b. A known size sets
// Content-Length, an unknown size sets chunked Transfer-Encoding.
func frame(h http.Header, method string, b body.Body) error {
	size := b.Size()

	if te := h.Get("Transfer-Encoding"); te != "" && size != body.UnknownSize {
		return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "Transfer-Encoding set for a body of known length")
	}

	if cl := h.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n != size {
			return errs.New(errs.KindBuilder, errs.ErrInvalidHeader,
				fmt.Sprintf("Content-Length %q does not match body size %d", cl, size))
		}
	}

	switch {
	case size == body.UnknownSize:
		h.Del("Content-Length")
		h.Set("Transfer-Encoding", "chunked")
	case size == 0 && !methodsWithEmptyLength[method]:
		h.Del("Content-Length")
	default:
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if ct := b.ContentType(); ct != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", ct)
	}

	return nil
}

// RequestOption is a functional option for [NewRequest].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	header     http.Header
	body       body.Body
	query      []body.Pair
	override   override
	extensions map[any]any
}

func (o *requestOpts) setBody(b body.Body) error {
	if o.body != nil {
		return errs.New(errs.KindBuilder, errs.ErrBodyConflict, fmt.Sprintf("%s body already set", o.body.Kind()))
	}
	o.body = b
	return nil
}

func (o *requestOpts) set(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, fmt.Sprintf("name %q", name))
	}
	if !httpguts.ValidHeaderFieldValue(value) || !utf8.ValidString(value) {
		return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, fmt.Sprintf("value for %q", name))
	}

	key := http.CanonicalHeaderKey(name)
	if repeatable[key] {
		o.header.Add(key, value)
	} else {
		o.header.Set(key, value)
	}

	return nil
}

// WithHeader sets a header field. Names and values are validated; a
// later value replaces an earlier one unless the field may repeat.
func WithHeader(name, value string) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set(name, value)
	}
}

// WithHeaders sets every field in headers, in the same way as WithHeader.
func WithHeaders(headers http.Header) RequestOption {
	return func(opts *requestOpts) error {
		for k, vs := range headers {
			for _, v := range vs {
				if err := opts.set(k, v); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// WithContentType sets the Content-Type, overriding the body's own.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "empty content type")
		}
		return opts.set("Content-Type", contentType)
	}
}

// WithBasicAuth sets an Authorization header for HTTP basic auth.
func WithBasicAuth(user, password string) RequestOption {
	return func(opts *requestOpts) error {
		if strings.Contains(user, ":") {
			return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "basic auth user must not contain ':'")
		}
		cred := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		return opts.set("Authorization", "Basic "+cred)
	}
}

// WithBearerAuth sets an Authorization header carrying token.
func WithBearerAuth(token string) RequestOption {
	return func(opts *requestOpts) error {
		if token == "" {
			return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "empty bearer token")
		}
		return opts.set("Authorization", "Bearer "+token)
	}
}

// WithQuery appends pairs to the target's query string.
func WithQuery(pairs ...body.Pair) RequestOption {
	return func(opts *requestOpts) error {
		opts.query = append(opts.query, pairs...)
		return nil
	}
}

// WithCookies attaches the given cookies to the Cookie header.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		parts := make([]string, 0, len(cookies)+1)
		if cur := opts.header.Get("Cookie"); cur != "" {
			parts = append(parts, cur)
		}
		for _, c := range cookies {
			if c == nil {
				return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "nil cookie")
			}
			if err := c.Valid(); err != nil {
				return errs.Wrap(errs.KindBuilder, errs.ErrInvalidHeader, err, "cookie")
			}
			parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value, Quoted: c.Quoted}).String())
		}
		return opts.set("Cookie", strings.Join(parts, "; "))
	}
}

// WithIfNoneMatch sets If-None-Match to the given entity tags.
func WithIfNoneMatch(tags ...header.EntityTag) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set("If-None-Match", joinTags(tags))
	}
}

// WithIfMatch sets If-Match to the given entity tags.
func WithIfMatch(tags ...header.EntityTag) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set("If-Match", joinTags(tags))
	}
}

func joinTags(tags []header.EntityTag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// WithIfModifiedSince sets If-Modified-Since.
func WithIfModifiedSince(t time.Time) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set("If-Modified-Since", header.FormatTime(t))
	}
}

// WithIfUnmodifiedSince sets If-Unmodified-Since.
func WithIfUnmodifiedSince(t time.Time) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set("If-Unmodified-Since", header.FormatTime(t))
	}
}

// WithAcceptEncoding replaces the automatic Accept-Encoding value.
func WithAcceptEncoding(names ...string) RequestOption {
	return func(opts *requestOpts) error {
		return opts.set("Accept-Encoding", strings.Join(names, ", "))
	}
}

// WithContentDisposition sets the Content-Disposition of the request.
func WithContentDisposition(d header.Disposition) RequestOption {
	return func(opts *requestOpts) error {
		v := d.String()
		if v == "" {
			return errs.New(errs.KindBuilder, errs.ErrInvalidHeader, "content disposition")
		}
		return opts.set("Content-Disposition", v)
	}
}

// WithExtension stores a value that travels with the request and is
// returned by [Response.Extension].
func WithExtension(key, value any) RequestOption {
	return func(opts *requestOpts) error {
		if key == nil {
			return errs.New(errs.KindBuilder, errs.ErrInvalidOption, "nil extension key")
		}
		if opts.extensions == nil {
			opts.extensions = make(map[any]any)
		}
		opts.extensions[key] = value
		return nil
	}
}

// OverrideMaxRedirects replaces the Client's redirect limit for this request.
func OverrideMaxRedirects(n int) RequestOption {
	return func(opts *requestOpts) error {
		opts.override.MaxRedirects = &n
		return nil
	}
}

// OverrideFollowRedirects replaces the Client's follow setting for this request.
func OverrideFollowRedirects(follow bool) RequestOption {
	return func(opts *requestOpts) error {
		opts.override.Follow = &follow
		return nil
	}
}

// OverrideTimeout replaces the Client's request timeout for this request.
// Zero disables the timeout.
func OverrideTimeout(d time.Duration) RequestOption {
	return func(opts *requestOpts) error {
		opts.override.Timeout = &d
		return nil
	}
}

// ————————————————————————————————————————————————————————————————————
// Body options: at most one per request.
// ————————————————————————————————————————————————————————————————————

// WithEmpty sets an empty body explicitly.
func WithEmpty() RequestOption {
	return func(opts *requestOpts) error { return opts.setBody(body.Empty()) }
}

// WithBytes sends b with the given content type. b is copied.
func WithBytes(b []byte, contentType string) RequestOption {
	return func(opts *requestOpts) error { return opts.setBody(body.Bytes(b, contentType)) }
}

// WithText sends s as text/plain; charset=utf-8.
func WithText(s string) RequestOption {
	return func(opts *requestOpts) error { return opts.setBody(body.Text(s)) }
}

// WithJSON sends v encoded as JSON.
func WithJSON(v any) RequestOption {
	return func(opts *requestOpts) error {
		b, err := body.JSON(v)
		if err != nil {
			return err
		}
		return opts.setBody(b)
	}
}

// WithForm sends pairs as application/x-www-form-urlencoded.
func WithForm(pairs ...body.Pair) RequestOption {
	return func(opts *requestOpts) error { return opts.setBody(body.Form(pairs...)) }
}

// WithMultipart sends parts as multipart/form-data.
func WithMultipart(parts ...body.Part) RequestOption {
	return func(opts *requestOpts) error {
		m, err := body.Multipart(parts...)
		if err != nil {
			return err
		}
		return opts.setBody(m)
	}
}

// WithStream sends the content of r. size is the content length or
// [body.UnknownSize]. The body can be sent once, so a 307 or 308
// redirect fails with errs.ErrBodyNotReplayable; use [WithBody] with
// [body.StreamFunc] for a replayable stream.
func WithStream(r io.Reader, size int64, contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if r == nil {
			return errs.New(errs.KindBuilder, errs.ErrInvalidOption, "nil stream")
		}
		return opts.setBody(body.Stream(r, size, contentType))
	}
}

// WithFile uploads the file at path. The file is reopened for each
// attempt.
func WithFile(path string) RequestOption {
	return func(opts *requestOpts) error {
		b, err := body.File(path)
		if err != nil {
			return err
		}
		return opts.setBody(b)
	}
}

// WithBody sends any [body.Body].
func WithBody(b body.Body) RequestOption {
	return func(opts *requestOpts) error {
		if b == nil {
			return errs.New(errs.KindBuilder, errs.ErrInvalidOption, "nil body")
		}
		return opts.setBody(b)
	}
}
