// Package body models request payloads as lazy sequences of byte chunks.
//
// Every variant implements [Body]. A Body is an immutable description of the
// payload; its bytes are pulled through a [Producer] obtained from
// [Body.Open]. Replayable bodies may be opened any number of times, which
// lets redirects re-send them. Non-replayable streams fail the second Open
// with errs.ErrBodyNotReplayable.
package body

import (
	"io"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// chunkSize caps the length of a single chunk handed out by a Producer.
const chunkSize = 32 << 10 // 32KB

// UnknownSize is reported by Size when the total length isn't known ahead
// of time, which forces chunked transfer downstream.
const UnknownSize int64 = -1

// Kind tags the Body variant.
type Kind int

const (
	KindEmpty Kind = iota
	KindBytes
	KindStream
	KindMultipart
	KindForm
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBytes:
		return "bytes"
	case KindStream:
		return "stream"
	case KindMultipart:
		return "multipart"
	case KindForm:
		return "form"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Body is a request payload.
type Body interface {
	Kind() Kind
	// Size returns the exact length in bytes or UnknownSize.
	Size() int64
	// ContentType returns the media type implied by the variant, if any.
	ContentType() string
	// Replayable reports whether Open can be called more than once.
	Replayable() bool
	// Open returns a fresh Producer positioned at the first chunk.
	Open() (Producer, error)
}

// Producer yields the chunks of an opened Body. Next returns io.EOF once
// the payload is exhausted. A returned chunk is only valid until the next
// call to Next.
type Producer interface {
	Next() ([]byte, error)
	Close() error
}

// Empty returns a Body with no content.
func Empty() Body { return emptyBody{} }

type emptyBody struct{}

func (emptyBody) Kind() Kind              { return KindEmpty }
func (emptyBody) Size() int64             { return 0 }
func (emptyBody) ContentType() string     { return "" }
func (emptyBody) Replayable() bool        { return true }
func (emptyBody) Open() (Producer, error) { return eofProducer{}, nil }

type eofProducer struct{}

func (eofProducer) Next() ([]byte, error) { return nil, io.EOF }
func (eofProducer) Close() error          { return nil }

// Bytes returns a Body owning a copy of b. contentType may be empty.
func Bytes(b []byte, contentType string) Body {
	return &bytesBody{data: append([]byte(nil), b...), contentType: contentType, kind: KindBytes}
}

// Text returns a UTF-8 text/plain Body.
func Text(s string) Body {
	return &bytesBody{data: []byte(s), contentType: "text/plain; charset=utf-8", kind: KindBytes}
}

type bytesBody struct {
	data        []byte
	contentType string
	kind        Kind
}

func (b *bytesBody) Kind() Kind          { return b.kind }
func (b *bytesBody) Size() int64         { return int64(len(b.data)) }
func (b *bytesBody) ContentType() string { return b.contentType }
func (b *bytesBody) Replayable() bool    { return true }

func (b *bytesBody) Open() (Producer, error) {
	return &sliceProducer{data: b.data}, nil
}

// sliceProducer hands out an in-memory buffer in chunkSize pieces.
type sliceProducer struct {
	data []byte
	off  int
}

func (p *sliceProducer) Next() ([]byte, error) {
	if p.off >= len(p.data) {
		return nil, io.EOF
	}

	end := min(p.off+chunkSize, len(p.data))
	chunk := p.data[p.off:end]
	p.off = end

	return chunk, nil
}

func (p *sliceProducer) Close() error { return nil }

// ReadAll drains b into memory.
func ReadAll(b Body) ([]byte, error) {
	p, err := b.Open()
	if err != nil {
		return nil, err
	}
	defer p.Close()

	var out []byte
	if n := b.Size(); n > 0 {
		out = make([]byte, 0, n)
	}

	for {
		chunk, err := p.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

// notReplayable is returned by the second Open of a single-use stream.
func notReplayable(detail string) error {
	return errs.New(errs.KindRedirect, errs.ErrBodyNotReplayable, detail)
}
