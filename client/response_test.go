package client_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/reqflow/client"
	"github.com/adamwoolhether/reqflow/client/errs"
	"github.com/adamwoolhether/reqflow/client/header"
)

// respond executes a GET against a stub transport that answers with
// code, hdr and body.
func respond(t *testing.T, code int, hdr http.Header, body []byte, opts ...client.Option) *client.Response {
	t.Helper()

	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return stubResponse(r, code, hdr.Clone(), string(body)), nil
	})

	c := build(t, append([]client.Option{client.WithTransport(rt), client.WithNoFollowRedirects()}, opts...)...)

	resp, err := c.Get(t.Context(), "http://example.com/res")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	t.Cleanup(func() { _ = resp.Close() })

	return resp
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, s); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func brotlied(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := io.WriteString(bw, s); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func TestResponse_Decompression(t *testing.T) {
	const text = "compressed content, compressed content, compressed content"

	tests := map[string]struct {
		encoding string
		body     func(t *testing.T) []byte
	}{
		"gzip": {
			encoding: "gzip",
			body:     func(t *testing.T) []byte { return gzipped(t, text) },
		},
		"x-gzip alias": {
			encoding: "x-gzip",
			body:     func(t *testing.T) []byte { return gzipped(t, text) },
		},
		"brotli": {
			encoding: "br",
			body:     func(t *testing.T) []byte { return brotlied(t, text) },
		},
		"gzip then brotli": {
			encoding: "gzip, br",
			body: func(t *testing.T) []byte {
				return brotlied(t, string(gzipped(t, text)))
			},
		},
		"identity": {
			encoding: "identity",
			body:     func(t *testing.T) []byte { return []byte(text) },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {tc.encoding}}, tc.body(t))

			b, err := resp.Bytes()
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if string(b) != text {
				t.Errorf("exp %q, got %q", text, b)
			}
		})
	}
}

func TestResponse_RawBytesKeepsEncoding(t *testing.T) {
	payload := gzipped(t, "raw")
	resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, payload)

	b, err := resp.RawBytes()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Error("raw bytes should be the compressed payload")
	}
}

func TestResponse_UnsupportedCompression(t *testing.T) {
	resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"zstd"}}, []byte("opaque"))

	_, err := resp.Bytes()
	if !errors.Is(err, client.ErrUnsupportedCompression) {
		t.Fatalf("exp %v, got %v", client.ErrUnsupportedCompression, err)
	}
	if errs.KindOf(err) != errs.KindDecode {
		t.Errorf("exp decode kind, got %v", errs.KindOf(err))
	}

	b, err := resp.RawBytes()
	if err != nil {
		t.Fatalf("raw bytes should still be readable, got: %v", err)
	}
	if string(b) != "opaque" {
		t.Errorf("exp %q, got %q", "opaque", b)
	}
}

func TestResponse_CorruptCompression(t *testing.T) {
	resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, []byte("not gzip at all"))

	_, err := resp.Bytes()
	if !errors.Is(err, client.ErrDecompressFailed) {
		t.Fatalf("exp %v, got %v", client.ErrDecompressFailed, err)
	}
}

func TestResponse_WithNoDecompression(t *testing.T) {
	payload := gzipped(t, "kept")
	var sent string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = r.Header.Get("Accept-Encoding")
		return stubResponse(r, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, string(payload)), nil
	})

	c := build(t, client.WithTransport(rt), client.WithNoDecompression())
	resp, err := c.Get(t.Context(), "http://example.com")
	if err != nil {
		t.Fatal(err)
	}

	b, err := resp.Bytes()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Error("exp the body untouched")
	}
	if sent != "" {
		t.Errorf("exp no Accept-Encoding, got %q", sent)
	}
}

func TestResponse_AlreadyConsumed(t *testing.T) {
	tests := map[string]struct {
		first func(*client.Response) error
	}{
		"after bytes": {
			first: func(r *client.Response) error { _, err := r.Bytes(); return err },
		},
		"after text": {
			first: func(r *client.Response) error { _, err := r.Text(); return err },
		},
		"after close": {
			first: func(r *client.Response) error { return r.Close() },
		},
		"after reader": {
			first: func(r *client.Response) error {
				rc, err := r.Reader()
				if err != nil {
					return err
				}
				return rc.Close()
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, http.StatusOK, nil, []byte("once"))

			if err := tc.first(resp); err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			_, err := resp.RawBytes()
			if !errors.Is(err, client.ErrAlreadyConsumed) {
				t.Errorf("exp %v, got %v", client.ErrAlreadyConsumed, err)
			}

			var v any
			if err := resp.JSON(&v); !errors.Is(err, client.ErrAlreadyConsumed) {
				t.Errorf("exp %v, got %v", client.ErrAlreadyConsumed, err)
			}
		})
	}
}

func TestResponse_CloseTwice(t *testing.T) {
	resp := respond(t, http.StatusOK, nil, []byte("x"))

	if err := resp.Close(); err != nil {
		t.Fatal(err)
	}
	if err := resp.Close(); err != nil {
		t.Errorf("exp second close to be a no-op, got %v", err)
	}
}

func TestResponse_Text(t *testing.T) {
	tests := map[string]struct {
		contentType string
		body        []byte
		opts        []client.TextOption
		exp         string
	}{
		"utf-8 default": {
			contentType: "text/plain",
			body:        []byte("café"),
			exp:         "café",
		},
		"latin1 declared": {
			contentType: "text/plain; charset=ISO-8859-1",
			body:        []byte{'c', 'a', 'f', 0xE9},
			exp:         "café",
		},
		"windows-1252 quotes": {
			contentType: "text/plain; charset=windows-1252",
			body:        []byte{0x93, 'q', 0x94},
			exp:         "“q”",
		},
		"html meta sniffed": {
			contentType: "text/html",
			body:        []byte(`<html><head><meta charset="iso-8859-1"></head><body>caf` + "\xe9" + `</body></html>`),
			exp:         `<html><head><meta charset="iso-8859-1"></head><body>café</body></html>`,
		},
		"explicit charset wins": {
			contentType: "text/plain; charset=utf-8",
			body:        []byte{'c', 'a', 'f', 0xE9},
			opts:        []client.TextOption{client.WithCharset("latin1")},
			exp:         "café",
		},
		"lossy": {
			contentType: "text/plain; charset=utf-8",
			body:        []byte{'o', 'k', 0xFF},
			opts:        []client.TextOption{client.WithLossy()},
			exp:         "ok�",
		},
		"genuine replacement char": {
			contentType: "text/plain; charset=utf-8",
			body:        []byte("a�b"),
			exp:         "a�b",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, http.StatusOK, http.Header{"Content-Type": {tc.contentType}}, tc.body)

			got, err := resp.Text(tc.opts...)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestResponse_TextStrictFailure(t *testing.T) {
	tests := map[string]struct {
		contentType string
		body        []byte
	}{
		"invalid utf-8": {
			contentType: "text/plain; charset=utf-8",
			body:        []byte{'o', 'k', 0xFF, 0xFE},
		},
		"unknown label": {
			contentType: "text/plain; charset=x-no-such-charset",
			body:        []byte("ok"),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, http.StatusOK, http.Header{"Content-Type": {tc.contentType}}, tc.body)

			_, err := resp.Text()
			if !errors.Is(err, client.ErrCharsetDecodeFailed) {
				t.Fatalf("exp %v, got %v", client.ErrCharsetDecodeFailed, err)
			}

			var e *client.Error
			if !errors.As(err, &e) {
				t.Fatalf("exp *client.Error, got %T", err)
			}
			if !bytes.Equal(e.Data, tc.body) {
				t.Errorf("exp the undecoded bytes in Data, got %q", e.Data)
			}
		})
	}
}

type widget struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestResponse_JSON(t *testing.T) {
	payload := `{"name":"gear","count":3,"tags":["a","b"]}`

	t.Run("into value", func(t *testing.T) {
		resp := respond(t, http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(payload))

		var got widget
		if err := resp.JSON(&got); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		exp := widget{Name: "gear", Count: 3, Tags: []string{"a", "b"}}
		if diff := cmp.Diff(exp, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("generic", func(t *testing.T) {
		resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, gzipped(t, payload), client.WithBodyLimit(1<<10))

		got, err := client.Structured[widget](resp)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Count != 3 {
			t.Errorf("exp count 3, got %d", got.Count)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		resp := respond(t, http.StatusOK, nil, []byte(`{"name":`))

		var got widget
		err := resp.JSON(&got)
		if !errors.Is(err, client.ErrUnmarshalFailed) {
			t.Fatalf("exp %v, got %v", client.ErrUnmarshalFailed, err)
		}

		var e *client.Error
		if !errors.As(err, &e) || string(e.Data) != `{"name":` {
			t.Errorf("exp raw body in error data, got %v", err)
		}
	})
}

func TestResponse_Query(t *testing.T) {
	resp := respond(t, http.StatusOK, nil, []byte(`{"items":[{"id":1},{"id":2},{"id":7}]}`))

	res, err := resp.Query("items.#.id")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	var ids []int64
	for _, v := range res.Array() {
		ids = append(ids, v.Int())
	}
	if diff := cmp.Diff([]int64{1, 2, 7}, ids); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	bad := respond(t, http.StatusOK, nil, []byte("<xml/>"))
	if _, err := bad.Query("a"); !errors.Is(err, client.ErrUnmarshalFailed) {
		t.Errorf("exp %v, got %v", client.ErrUnmarshalFailed, err)
	}
}

func TestResponse_BodyLimit(t *testing.T) {
	big := []byte(strings.Repeat("x", 64))

	tests := map[string]struct {
		limit  int64
		expErr error
	}{
		"under":     {limit: 128},
		"exact":     {limit: 64},
		"over":      {limit: 63, expErr: client.ErrSizeLimitExceeded},
		"unlimited": {limit: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, http.StatusOK, nil, big, client.WithBodyLimit(tc.limit))

			b, err := resp.Bytes()
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("exp %v, got %v", tc.expErr, err)
			}
			if tc.expErr == nil && len(b) != len(big) {
				t.Errorf("exp %d bytes, got %d", len(big), len(b))
			}
		})
	}
}

func TestResponse_ReaderIgnoresLimit(t *testing.T) {
	big := strings.Repeat("y", 4096)
	resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, gzipped(t, big), client.WithBodyLimit(16))

	rc, err := resp.Reader()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(b) != big {
		t.Errorf("exp %d bytes, got %d", len(big), len(b))
	}
}

func TestResponse_HeaderViews(t *testing.T) {
	modified := time.Date(2023, time.November, 5, 10, 0, 0, 0, time.UTC)

	hdr := http.Header{
		"Content-Type":        {"text/csv; charset=utf-8"},
		"Content-Length":      {"3"},
		"Content-Encoding":    {"identity"},
		"Etag":                {`W/"v2"`},
		"Last-Modified":       {modified.Format(http.TimeFormat)},
		"Content-Disposition": {`attachment; filename="../../etc/report.csv"`},
		"Set-Cookie":          {"session=abc; Path=/; HttpOnly", "theme=dark"},
	}
	resp := respond(t, http.StatusOK, hdr, []byte("a,b"))

	if ct, ok := resp.ContentType(); !ok || ct.Type != "text/csv" || ct.Charset() != "utf-8" {
		t.Errorf("unexpected content type %+v", ct)
	}
	if n, ok := resp.ContentLength(); !ok || n != 3 {
		t.Errorf("exp length 3, got %d", n)
	}
	if diff := cmp.Diff([]string{"identity"}, resp.ContentEncoding()); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}
	if tag, ok := resp.ETag(); !ok || tag != (header.EntityTag{Tag: "v2", Weak: true}) {
		t.Errorf("unexpected etag %+v", tag)
	}
	if lm, ok := resp.LastModified(); !ok || !lm.Equal(modified) {
		t.Errorf("exp %v, got %v", modified, lm)
	}

	d, ok := resp.ContentDisposition()
	if !ok || !d.IsAttachment() {
		t.Fatalf("unexpected disposition %+v", d)
	}
	if d.SafeFilename() != "report.csv" {
		t.Errorf("exp report.csv, got %q", d.SafeFilename())
	}

	cookies := resp.Cookies()
	if len(cookies) != 2 {
		t.Fatalf("exp 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "session" || !cookies[0].HttpOnly {
		t.Errorf("unexpected first cookie %+v", cookies[0])
	}
	if resp.Proto() != "HTTP/1.1" {
		t.Errorf("exp HTTP/1.1, got %s", resp.Proto())
	}
	if resp.URL().String() != "http://example.com/res" {
		t.Errorf("unexpected url %s", resp.URL())
	}
}

func TestResponse_StatusPredicates(t *testing.T) {
	type preds struct {
		Info, Success, Redirect, Client, Server, Error bool
	}

	tests := map[string]struct {
		code int
		exp  preds
	}{
		"100": {code: 100, exp: preds{Info: true}},
		"204": {code: 204, exp: preds{Success: true}},
		"304": {code: 304, exp: preds{Redirect: true}},
		"404": {code: 404, exp: preds{Client: true, Error: true}},
		"503": {code: 503, exp: preds{Server: true, Error: true}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, tc.code, nil, nil)

			got := preds{
				Info:     resp.IsInformational(),
				Success:  resp.IsSuccess(),
				Redirect: resp.IsRedirect(),
				Client:   resp.IsClientError(),
				Server:   resp.IsServerError(),
				Error:    resp.IsError(),
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResponse_ExpectStatus(t *testing.T) {
	tests := map[string]struct {
		code    int
		expect  []int
		expErr  error
		expAuth bool
	}{
		"match":        {code: 201, expect: []int{200, 201}},
		"mismatch":     {code: 500, expect: []int{200}, expErr: client.ErrUnexpectedStatusCode},
		"unauthorized": {code: 401, expect: []int{200}, expErr: client.ErrUnexpectedStatusCode, expAuth: true},
		"forbidden":    {code: 403, expect: []int{200}, expErr: client.ErrUnexpectedStatusCode, expAuth: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := respond(t, tc.code, nil, []byte("details"))

			err := resp.ExpectStatus(tc.expect...)
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("exp %v, got %v", tc.expErr, err)
			}
			if errors.Is(err, client.ErrAuthFailure) != tc.expAuth {
				t.Errorf("exp auth failure %v, got %v", tc.expAuth, err)
			}
			if err == nil {
				return
			}

			var use *client.UnexpectedStatusError
			if !errors.As(err, &use) {
				t.Fatalf("exp *UnexpectedStatusError, got %T", err)
			}
			if use.StatusCode != tc.code || use.Body != "details" {
				t.Errorf("unexpected error fields %+v", use)
			}
		})
	}
}

func TestResponse_ExpectSuccessTruncatesBody(t *testing.T) {
	resp := respond(t, http.StatusBadGateway, nil, bytes.Repeat([]byte("e"), 10<<10))

	err := resp.ExpectSuccess()

	var use *client.UnexpectedStatusError
	if !errors.As(err, &use) {
		t.Fatalf("exp *UnexpectedStatusError, got %v", err)
	}
	if len(use.Body) != 4<<10 {
		t.Errorf("exp body capped at 4KB, got %d", len(use.Body))
	}
}

func TestResponse_NoContentIgnoresEncoding(t *testing.T) {
	gz := http.Header{"Content-Encoding": {"gzip"}}

	tests := map[string]struct {
		method string
		code   int
		opts   []client.RequestOption
	}{
		"204 get":             {method: http.MethodGet, code: http.StatusNoContent},
		"204 head":            {method: http.MethodHead, code: http.StatusNoContent},
		"200 head":            {method: http.MethodHead, code: http.StatusOK},
		"304 conditional get": {
			method: http.MethodGet,
			code:   http.StatusNotModified,
			opts:   []client.RequestOption{client.WithIfNoneMatch(header.EntityTag{Tag: "v1"})},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				if r.Method != tc.method {
					t.Errorf("exp method %s, got %s", tc.method, r.Method)
				}
				return stubResponse(r, tc.code, gz.Clone(), ""), nil
			})
			c := build(t, client.WithTransport(rt))

			for _, terminal := range []string{"bytes", "text", "reader"} {
				resp, err := c.Do(t.Context(), tc.method, "http://example.com/res", tc.opts...)
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				if resp.Status() != tc.code {
					t.Errorf("exp status %d, got %d", tc.code, resp.Status())
				}

				var got []byte
				switch terminal {
				case "bytes":
					got, err = resp.Bytes()
				case "text":
					var s string
					s, err = resp.Text()
					got = []byte(s)
				case "reader":
					var rc io.ReadCloser
					if rc, err = resp.Reader(); err == nil {
						got, err = io.ReadAll(rc)
						rc.Close()
					}
				}
				if err != nil {
					t.Errorf("%s: exp nil err, got %v", terminal, err)
				}
				if len(got) != 0 {
					t.Errorf("%s: exp empty content, got %q", terminal, got)
				}
			}
		})
	}
}

func TestResponse_EmptyEncodedBody(t *testing.T) {
	resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip"}}, nil)

	b, err := resp.Bytes()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("exp empty content, got %q", b)
	}
}

func TestResponse_RepeatedContentEncoding(t *testing.T) {
	const text = "encoded twice"

	t.Run("both lines decoded", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(gzipped(t, text)); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}

		resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip", "gzip"}}, buf.Bytes())

		if diff := cmp.Diff([]string{"gzip", "gzip"}, resp.ContentEncoding()); diff != "" {
			t.Errorf("codings mismatch (-want +got):\n%s", diff)
		}
		b, err := resp.Bytes()
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if string(b) != text {
			t.Errorf("exp %q, got %q", text, b)
		}
	})

	t.Run("unknown coding on a later line", func(t *testing.T) {
		resp := respond(t, http.StatusOK, http.Header{"Content-Encoding": {"gzip", "zstd"}}, gzipped(t, text))

		if _, err := resp.Bytes(); !errors.Is(err, client.ErrUnsupportedCompression) {
			t.Errorf("exp ErrUnsupportedCompression, got %v", err)
		}
	})
}

func TestResponse_ToFileIdentityKnowsTotal(t *testing.T) {
	hdr := http.Header{
		"Content-Encoding": {"identity"},
		"Content-Length":   {"5"},
	}
	resp := respond(t, http.StatusOK, hdr, []byte("hello"))

	path := filepath.Join(t.TempDir(), "out.txt")
	var total int64
	err := resp.ToFile(t.Context(), path, client.WithProgress(func(_, tot int64) { total = tot }))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if total != 5 {
		t.Errorf("exp total 5, got %d", total)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("exp %q, got %q", "hello", got)
	}
}

func TestResponse_URLAfterRedirectsWithoutRequest(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		var resp *http.Response
		switch r.URL.Path {
		case "/start":
			resp = stubResponse(r, http.StatusFound, http.Header{"Location": {"/middle"}}, "")
		case "/middle":
			resp = stubResponse(r, http.StatusSeeOther, http.Header{"Location": {"/final"}}, "")
		default:
			resp = stubResponse(r, http.StatusOK, nil, "done")
		}
		resp.Request = nil
		return resp, nil
	})
	c := build(t, client.WithTransport(rt))

	resp, err := c.Get(t.Context(), "http://example.com/start")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Close()

	if got := resp.URL().String(); got != "http://example.com/final" {
		t.Errorf("exp final url, got %s", got)
	}
	if resp.Redirects() != 2 {
		t.Errorf("exp 2 redirects, got %d", resp.Redirects())
	}
}
