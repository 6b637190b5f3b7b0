// Package decode turns raw response bytes into content: it undoes
// Content-Encoding through a registry of codecs and converts text to
// UTF-8 according to its charset.
package decode

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// Codec undoes one content coding.
type Codec interface {
	// Name is the Content-Encoding token, lower case.
	Name() string
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Identity passes content through unchanged.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Gzip decodes RFC 1952 content.
type Gzip struct{}

func (Gzip) Name() string { return "gzip" }

func (Gzip) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Deflate decodes "deflate" content. RFC 9110 specifies a zlib stream, but
// some servers send raw DEFLATE, so the zlib header is sniffed first.
type Deflate struct{}

func (Deflate) Name() string { return "deflate" }

func (Deflate) NewReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(head) == 2 && isZlibHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}

	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Brotli decodes RFC 7932 content.
type Brotli struct{}

func (Brotli) Name() string { return "br" }

func (Brotli) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

// aliases map legacy tokens onto registered codec names.
var aliases = map[string]string{
	"x-gzip": "gzip",
}

// Registry resolves Content-Encoding tokens to codecs.
type Registry struct {
	codecs map[string]Codec
	order  []string
}

// NewRegistry returns a Registry holding codecs. Identity is always
// present.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: map[string]Codec{"identity": Identity{}}}
	for _, c := range codecs {
		r.Register(c)
	}

	return r
}

// DefaultRegistry supports gzip, deflate and br.
func DefaultRegistry() *Registry {
	return NewRegistry(Gzip{}, Deflate{}, Brotli{})
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) {
	name := strings.ToLower(c.Name())
	if _, ok := r.codecs[name]; !ok && name != "identity" {
		r.order = append(r.order, name)
	}
	r.codecs[name] = c
}

// Names lists the registered codings in registration order, excluding
// identity.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

// AcceptEncoding renders the Accept-Encoding value advertising every
// registered coding.
func (r *Registry) AcceptEncoding() string {
	return strings.Join(r.order, ", ")
}

// Check reports ErrUnsupportedCompression if any coding in the
// Content-Encoding value has no codec. It reads no content.
func (r *Registry) Check(contentEncoding string) error {
	_, err := r.chain(contentEncoding)
	return err
}

// NewReader wraps src with the decoders for contentEncoding, applied in
// reverse order of the listed codings. An empty src is empty content and
// gets no decoders. Closing the result closes src.
func (r *Registry) NewReader(contentEncoding string, src io.ReadCloser) (io.ReadCloser, error) {
	chain, err := r.chain(contentEncoding)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return src, nil
	}

	br := bufio.NewReader(src)
	if _, err := br.Peek(1); errors.Is(err, io.EOF) {
		return src, nil
	}

	s := &sourceReader{r: br}
	cr := &codecReader{src: s, closers: []io.Closer{src}}

	var cur io.Reader = s
	for _, c := range slices.Backward(chain) {
		dec, err := c.NewReader(cur)
		if err != nil {
			src.Close()
			if s.err != nil {
				return nil, s.err
			}
			return nil, errs.Wrap(errs.KindDecode, errs.ErrDecompressFailed, err, c.Name())
		}
		cr.closers = append(cr.closers, dec)
		cr.names = append(cr.names, c.Name())
		cur = dec
	}
	cr.r = cur

	return cr, nil
}

func (r *Registry) chain(contentEncoding string) ([]Codec, error) {
	var chain []Codec
	for tok := range strings.SplitSeq(contentEncoding, ",") {
		name := strings.ToLower(strings.TrimSpace(tok))
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		if name == "" || name == "identity" {
			continue
		}

		c, ok := r.codecs[name]
		if !ok {
			return nil, errs.New(errs.KindDecode, errs.ErrUnsupportedCompression, fmt.Sprintf("content-encoding %q", name))
		}
		chain = append(chain, c)
	}

	return chain, nil
}

// sourceReader remembers the first error of the raw stream so transport
// failures aren't mistaken for corrupt content.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && s.err == nil {
		s.err = err
	}

	return n, err
}

type codecReader struct {
	r       io.Reader
	src     *sourceReader
	closers []io.Closer
	names   []string
}

func (c *codecReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if c.src.err != nil {
		return n, c.src.err
	}

	return n, errs.Wrap(errs.KindDecode, errs.ErrDecompressFailed, err, strings.Join(c.names, ","))
}

// Close releases decoders innermost first, then the source.
func (c *codecReader) Close() error {
	var errList []error
	for _, cl := range slices.Backward(c.closers) {
		if err := cl.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}
