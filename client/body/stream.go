package body

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// Stream returns a single-use Body reading from r. size is the exact
// length or UnknownSize. If r is an io.Closer it's closed with the Producer.
func Stream(r io.Reader, size int64, contentType string) Body {
	return &onceStream{r: r, size: normSize(size), contentType: contentType}
}

type onceStream struct {
	r           io.Reader
	size        int64
	contentType string
	opened      atomic.Bool
}

func (s *onceStream) Kind() Kind          { return KindStream }
func (s *onceStream) Size() int64         { return s.size }
func (s *onceStream) ContentType() string { return s.contentType }
func (s *onceStream) Replayable() bool    { return false }

func (s *onceStream) Open() (Producer, error) {
	if !s.opened.CompareAndSwap(false, true) {
		return nil, notReplayable("stream already opened")
	}

	return newReaderProducer(s.r), nil
}

// OpenFunc re-creates a stream source from its origin.
type OpenFunc func() (io.ReadCloser, error)

// StreamFunc returns a replayable streaming Body. open is called once per
// Open, so every attempt reads the source from the start.
func StreamFunc(open OpenFunc, size int64, contentType string) Body {
	return &funcStream{open: open, size: normSize(size), contentType: contentType}
}

type funcStream struct {
	open        OpenFunc
	size        int64
	contentType string
}

func (s *funcStream) Kind() Kind          { return KindStream }
func (s *funcStream) Size() int64         { return s.size }
func (s *funcStream) ContentType() string { return s.contentType }
func (s *funcStream) Replayable() bool    { return true }

func (s *funcStream) Open() (Producer, error) {
	rc, err := s.open()
	if err != nil {
		return nil, errs.Wrap(errs.KindBody, errs.ErrEncodingFailed, err, "opening stream source")
	}

	return newReaderProducer(rc), nil
}

// File returns a replayable Body uploading the file at path. The size is
// taken when File is called; the content type is guessed from the
// extension.
func File(path string) (Body, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindBody, errs.ErrEncodingFailed, err, "stat upload file")
	}
	if info.IsDir() {
		return nil, errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("%s is a directory", path))
	}

	open := func() (io.ReadCloser, error) { return os.Open(path) }

	return StreamFunc(open, info.Size(), typeByExtension(path)), nil
}

func typeByExtension(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

func normSize(size int64) int64 {
	if size < 0 {
		return UnknownSize
	}

	return size
}

// readerProducer pulls chunks from an io.Reader.
type readerProducer struct {
	r   io.Reader
	buf []byte
}

func newReaderProducer(r io.Reader) *readerProducer {
	return &readerProducer{r: r, buf: make([]byte, chunkSize)}
}

func (p *readerProducer) Next() ([]byte, error) {
	for {
		n, err := p.r.Read(p.buf)
		if n > 0 {
			return p.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *readerProducer) Close() error {
	if c, ok := p.r.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// NewReader adapts an open Producer to an io.ReadCloser.
func NewReader(p Producer) io.ReadCloser {
	return &producerReader{p: p}
}

type producerReader struct {
	p       Producer
	pending []byte
	err     error
}

func (r *producerReader) Read(b []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.pending, r.err = r.p.Next()
	}

	n := copy(b, r.pending)
	r.pending = r.pending[n:]

	return n, nil
}

func (r *producerReader) Close() error {
	return r.p.Close()
}
