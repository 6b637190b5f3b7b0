package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/adamwoolhether/reqflow/client/decode"
	"github.com/adamwoolhether/reqflow/client/download"
	"github.com/adamwoolhether/reqflow/client/errs"
	"github.com/adamwoolhether/reqflow/client/header"
	"github.com/adamwoolhether/reqflow/client/redirect"
)

// Response is the final response of an execution. Its body can be
// consumed once, through exactly one terminal: Bytes, RawBytes, Text,
// JSON, Query, Reader or ToFile. A second terminal fails with
// [ErrAlreadyConsumed]. Close releases the connection of a Response
// that won't be consumed.
type Response struct {
	status     int
	method     string
	proto      string
	header     http.Header
	url        *url.URL
	hops       []redirect.Hop
	request    *Request
	extensions map[any]any

	raw      io.ReadCloser
	consumed atomic.Bool
	release  sync.Once
	cancel   context.CancelFunc

	logger   *slog.Logger
	registry *decode.Registry
	charset  decode.Charset
	decode   bool
	limit    int64
}

func (c *Client) newResponse(req *Request, resp *http.Response, hops []redirect.Hop, cancel context.CancelFunc) *Response {
	u, method := req.URL(), req.Method()
	if len(hops) > 0 {
		u, method = hops[len(hops)-1].To, hops[len(hops)-1].Method
	}
	if resp.Request != nil {
		if resp.Request.URL != nil {
			u = resp.Request.URL
		}
		method = resp.Request.Method
	}

	return &Response{
		status:     resp.StatusCode,
		method:     method,
		proto:      resp.Proto,
		header:     resp.Header,
		url:        u,
		hops:       hops,
		request:    req,
		extensions: req.extensions,
		raw:        resp.Body,
		cancel:     cancel,
		logger:     c.logger,
		registry:   c.registry,
		charset:    c.charset,
		decode:     c.decode,
		limit:      c.cfg.BodyLimit,
	}
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// Proto returns the protocol the response arrived over, e.g. "HTTP/2.0".
func (r *Response) Proto() string { return r.proto }

// Header returns the response header. It must not be modified.
func (r *Response) Header() http.Header { return r.header }

// URL returns the final target after redirects.
func (r *Response) URL() *url.URL { return r.url }

// Redirects returns how many redirects were followed.
func (r *Response) Redirects() int { return len(r.hops) }

// Hops returns the redirects followed, oldest first.
func (r *Response) Hops() []redirect.Hop { return r.hops }

// Request returns the Request that was executed.
func (r *Response) Request() *Request { return r.request }

// Extension returns the value the originating Request stored under key.
func (r *Response) Extension(key any) (any, bool) {
	v, ok := r.extensions[key]
	return v, ok
}

// Close releases the body without reading it. It's safe to call more
// than once and after a terminal.
func (r *Response) Close() error {
	r.consumed.Store(true)
	return r.close()
}

func (r *Response) close() error {
	var err error
	r.release.Do(func() {
		err = r.raw.Close()
		r.cancel()
	})

	return err
}

func (r *Response) closeLogged() {
	if err := r.close(); err != nil {
		r.logger.Error("failed to close response body", "error", err)
	}
}

// take claims the body for one terminal.
func (r *Response) take() error {
	if !r.consumed.CompareAndSwap(false, true) {
		return errs.New(errs.KindBody, errs.ErrAlreadyConsumed, "")
	}

	return nil
}

// decoded claims the body and wraps it with the content decoders.
// Unsupported codings fail before the body is claimed, so RawBytes
// stays available.
func (r *Response) decoded() (io.ReadCloser, error) {
	if !r.decode {
		if err := r.take(); err != nil {
			return nil, err
		}
		return r.raw, nil
	}

	if !r.hasContent() {
		if err := r.take(); err != nil {
			return nil, err
		}
		return r.raw, nil
	}

	ce := strings.Join(r.header.Values("Content-Encoding"), ",")
	if err := r.registry.Check(ce); err != nil {
		return nil, err
	}
	if err := r.take(); err != nil {
		return nil, err
	}

	rc, err := r.registry.NewReader(ce, r.raw)
	if err != nil {
		r.closeLogged()
		return nil, r.readErr(err)
	}

	return rc, nil
}

// hasContent reports whether the response can carry content at all.
// HEAD responses and 1xx, 204 and 304 statuses never do, whatever their
// Content-Encoding says.
func (r *Response) hasContent() bool {
	switch {
	case r.method == http.MethodHead:
		return false
	case r.status >= 100 && r.status < 200:
		return false
	case r.status == http.StatusNoContent, r.status == http.StatusNotModified:
		return false
	}

	return true
}

// encoded reports whether the body carries a coding other than identity.
func (r *Response) encoded() bool {
	for _, c := range header.ContentEncoding(r.header) {
		if c != "identity" {
			return true
		}
	}

	return false
}

// readAll reads rc to the end within the body limit and releases the
// response.
func (r *Response) readAll(rc io.ReadCloser) ([]byte, error) {
	defer func() {
		if err := rc.Close(); err != nil {
			r.logger.Error("failed to close response body", "error", err)
		}
		r.closeLogged()
	}()

	var src io.Reader = rc
	if r.limit > 0 {
		src = io.LimitReader(rc, r.limit+1)
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return nil, r.readErr(err)
	}
	if r.limit > 0 && int64(len(b)) > r.limit {
		return nil, errs.New(errs.KindBody, errs.ErrSizeLimitExceeded, fmt.Sprintf("more than %d bytes", r.limit))
	}

	return b, nil
}

func (r *Response) readErr(err error) error {
	var e *errs.Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, errs.ErrTimeout, err, "reading body")
	default:
		return errs.Wrap(errs.KindTransport, errs.ErrTransport, err, "reading body")
	}
}

// RawBytes returns the body exactly as received, without decompression.
func (r *Response) RawBytes() ([]byte, error) {
	if err := r.take(); err != nil {
		return nil, err
	}

	return r.readAll(r.raw)
}

// Bytes returns the decompressed body.
func (r *Response) Bytes() ([]byte, error) {
	rc, err := r.decoded()
	if err != nil {
		return nil, err
	}

	return r.readAll(rc)
}

// TextOption is a functional option for [Response.Text].
type TextOption func(*textOpts)

type textOpts struct {
	charset string
	lossy   bool
}

// WithCharset decodes with label instead of the declared or sniffed charset.
func WithCharset(label string) TextOption {
	return func(o *textOpts) { o.charset = label }
}

// WithLossy replaces malformed sequences with U+FFFD instead of failing.
func WithLossy() TextOption {
	return func(o *textOpts) { o.lossy = true }
}

// Text returns the decompressed body converted to a string. The
// charset is taken from Content-Type, sniffed for HTML, or UTF-8.
// On ErrCharsetDecodeFailed the returned *errs.Error carries the
// decompressed bytes in Data.
func (r *Response) Text(opts ...TextOption) (string, error) {
	var o textOpts
	for _, opt := range opts {
		opt(&o)
	}

	b, err := r.Bytes()
	if err != nil {
		return "", err
	}

	label := o.charset
	if label == "" {
		label = decode.Label(r.header.Get("Content-Type"), b)
	}

	s, err := r.charset.Decode(b, label, o.lossy)
	if err != nil {
		var e *errs.Error
		if !errors.As(err, &e) {
			e = errs.Wrap(errs.KindDecode, errs.ErrCharsetDecodeFailed, err, label)
		}
		if e.Data == nil {
			e.Data = b
		}
		return "", e
	}

	return s, nil
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	b, err := r.Bytes()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return &errs.Error{Kind: errs.KindDecode, Err: errs.ErrUnmarshalFailed, Cause: err, Data: b}
	}

	return nil
}

// Structured decodes the body of r into a new T.
func Structured[T any](r *Response) (T, error) {
	var v T
	err := r.JSON(&v)
	return v, err
}

// Query reads a JSON body and returns the value at the gjson path.
func (r *Response) Query(path string) (gjson.Result, error) {
	b, err := r.Bytes()
	if err != nil {
		return gjson.Result{}, err
	}

	if !gjson.ValidBytes(b) {
		return gjson.Result{}, &errs.Error{Kind: errs.KindDecode, Err: errs.ErrUnmarshalFailed, Detail: "invalid json", Data: b}
	}

	return gjson.GetBytes(b, path), nil
}

// Reader returns the decompressed body as a stream. Closing it
// releases the response. The body limit does not apply.
func (r *Response) Reader() (io.ReadCloser, error) {
	rc, err := r.decoded()
	if err != nil {
		return nil, err
	}

	return &releaseReader{ReadCloser: rc, r: r}, nil
}

type releaseReader struct {
	io.ReadCloser
	r *Response
}

func (rr *releaseReader) Read(p []byte) (int, error) {
	n, err := rr.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = rr.r.readErr(err)
	}

	return n, err
}

func (rr *releaseReader) Close() error {
	err := rr.ReadCloser.Close()
	if cerr := rr.r.close(); err == nil {
		err = cerr
	}

	return err
}

// ToFile streams the decompressed body to path through the download
// options' Storage, reporting progress after each chunk. The expected
// total is Content-Length when the body isn't content-coded, else
// unknown. A failure leaves the partially written file in place.
func (r *Response) ToFile(ctx context.Context, path string, opts ...download.Option) error {
	rc, err := r.decoded()
	if err != nil {
		return err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			r.logger.Error("failed to close response body", "error", err)
		}
		r.closeLogged()
	}()

	total := int64(-1)
	if n, ok := header.ContentLength(r.header); ok && (!r.decode || !r.encoded()) {
		total = n
	}

	return download.Handle(ctx, rc, total, path, r.logger, opts...)
}

// ExpectStatus returns nil if the status is one of codes. Otherwise it
// reads up to 4KB of the body into an [*UnexpectedStatusError] and
// releases the response.
func (r *Response) ExpectStatus(codes ...int) error {
	for _, code := range codes {
		if r.status == code {
			return nil
		}
	}

	return r.unexpected()
}

// ExpectSuccess is ExpectStatus for any 2xx status.
func (r *Response) ExpectSuccess() error {
	if r.IsSuccess() {
		return nil
	}

	return r.unexpected()
}

func (r *Response) unexpected() error {
	var text string
	if r.take() == nil {
		b, err := io.ReadAll(io.LimitReader(r.raw, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}
		text = string(b)
		r.closeLogged()
	}

	return newUnexpectedStatusError(r.status, text)
}

// ————————————————————————————————————————————————————————————————————
// Header views, computed on each call.
// ————————————————————————————————————————————————————————————————————

// Cookies parses every Set-Cookie field, skipping malformed ones.
func (r *Response) Cookies() []*http.Cookie { return header.Cookies(r.header) }

// ETag returns the parsed ETag field.
func (r *Response) ETag() (header.EntityTag, bool) { return header.ETag(r.header) }

// LastModified returns the parsed Last-Modified field.
func (r *Response) LastModified() (time.Time, bool) { return header.LastModified(r.header) }

// ContentType returns the parsed Content-Type field.
func (r *Response) ContentType() (header.MediaType, bool) { return header.ContentType(r.header) }

// ContentLength returns the declared Content-Length.
func (r *Response) ContentLength() (int64, bool) { return header.ContentLength(r.header) }

// ContentEncoding lists the content codings in the order applied.
func (r *Response) ContentEncoding() []string { return header.ContentEncoding(r.header) }

// ContentDisposition returns the parsed Content-Disposition field.
func (r *Response) ContentDisposition() (header.Disposition, bool) {
	return header.ContentDisposition(r.header)
}

// ————————————————————————————————————————————————————————————————————
// Status classes
// ————————————————————————————————————————————————————————————————————

// IsInformational reports a 1xx status.
func (r *Response) IsInformational() bool { return r.status >= 100 && r.status < 200 }

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool { return r.status >= 200 && r.status < 300 }

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool { return r.status >= 300 && r.status < 400 }

// IsClientError reports a 4xx status.
func (r *Response) IsClientError() bool { return r.status >= 400 && r.status < 500 }

// IsServerError reports a 5xx status.
func (r *Response) IsServerError() bool { return r.status >= 500 && r.status < 600 }

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool { return r.IsClientError() || r.IsServerError() }
