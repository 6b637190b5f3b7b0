package body

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// maxBoundaryAttempts bounds the search for a boundary absent from every
// in-memory part.
const maxBoundaryAttempts = 8

// Part is a single named field of a multipart/form-data body.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Body        Body
}

// Field returns a plain text form field.
func Field(name, value string) Part {
	return Part{Name: name, Body: Bytes([]byte(value), "")}
}

// FilePart returns a file field holding data in memory.
func FilePart(name, filename, contentType string, data []byte) Part {
	return Part{Name: name, Filename: filename, ContentType: contentType, Body: Bytes(data, "")}
}

// FileUpload returns a file field streamed from path on every Open.
func FileUpload(name, path string) (Part, error) {
	b, err := File(path)
	if err != nil {
		return Part{}, err
	}

	return Part{
		Name:        name,
		Filename:    baseName(path),
		ContentType: b.ContentType(),
		Body:        b,
	}, nil
}

// MultipartBody is a multipart/form-data payload per RFC 7578.
type MultipartBody struct {
	boundary string
	parts    []Part
	heads    [][]byte
	size     int64
}

// Multipart assembles parts under a freshly generated boundary.
func Multipart(parts ...Part) (*MultipartBody, error) {
	if err := validParts(parts); err != nil {
		return nil, err
	}

	boundary, err := pickBoundary(parts)
	if err != nil {
		return nil, err
	}

	return newMultipart(boundary, parts), nil
}

// MultipartWithBoundary is Multipart with a caller supplied boundary.
func MultipartWithBoundary(boundary string, parts ...Part) (*MultipartBody, error) {
	if err := validBoundary(boundary); err != nil {
		return nil, err
	}
	if err := validParts(parts); err != nil {
		return nil, err
	}
	for _, p := range parts {
		if occursIn(boundary, p) {
			return nil, errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("boundary occurs in part[%s]", p.Name))
		}
	}

	return newMultipart(boundary, parts), nil
}

func validParts(parts []Part) error {
	for i, p := range parts {
		if p.Name == "" {
			return errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("part[%d] has no name", i))
		}
		if p.Body == nil {
			return errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("part[%s] has no body", p.Name))
		}
		if strings.ContainsAny(p.ContentType, "\r\n") {
			return errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("part[%s] content type has a line break", p.Name))
		}
	}

	return nil
}

func newMultipart(boundary string, parts []Part) *MultipartBody {
	m := &MultipartBody{
		boundary: boundary,
		parts:    parts,
		heads:    make([][]byte, len(parts)),
	}

	size := int64(len(m.closing()))
	for i, p := range parts {
		m.heads[i] = partHeader(boundary, p)
		n := p.Body.Size()
		if n == UnknownSize || size == UnknownSize {
			size = UnknownSize
			continue
		}
		size += int64(len(m.heads[i])) + n + int64(len(crlf))
	}
	m.size = size

	return m
}

// Boundary returns the delimiter token.
func (m *MultipartBody) Boundary() string { return m.boundary }

func (m *MultipartBody) Kind() Kind  { return KindMultipart }
func (m *MultipartBody) Size() int64 { return m.size }

func (m *MultipartBody) ContentType() string {
	return "multipart/form-data; boundary=" + m.boundary
}

func (m *MultipartBody) Replayable() bool {
	for _, p := range m.parts {
		if !p.Body.Replayable() {
			return false
		}
	}

	return true
}

// Open synthesizes the wire format lazily: each part's Body is opened only
// once the preceding segments are exhausted.
func (m *MultipartBody) Open() (Producer, error) {
	segs := make([]segment, 0, len(m.parts)*3+1)
	for i, p := range m.parts {
		segs = append(segs, staticSegment(m.heads[i]), p.Body.Open, staticSegment(crlf))
	}
	segs = append(segs, staticSegment(m.closing()))

	return &chainProducer{segs: segs}, nil
}

func (m *MultipartBody) closing() []byte {
	return []byte("--" + m.boundary + "--\r\n")
}

var crlf = []byte("\r\n")

// fieldEscaper percent-encodes the bytes that would end a quoted
// parameter or the header line, as browsers do for form-data.
var fieldEscaper = strings.NewReplacer("\r", "%0D", "\n", "%0A", `"`, "%22")

func partHeader(boundary string, p Part) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, `Content-Disposition: form-data; name="%s"`, fieldEscaper.Replace(p.Name))
	if p.Filename != "" {
		fmt.Fprintf(&b, `; filename="%s"`, fieldEscaper.Replace(p.Filename))
	}
	b.WriteString("\r\n")
	if p.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", p.ContentType)
	}
	b.WriteString("\r\n")

	return b.Bytes()
}

func pickBoundary(parts []Part) (string, error) {
	for range maxBoundaryAttempts {
		candidate := strings.ReplaceAll(uuid.NewString(), "-", "")
		clash := false
		for _, p := range parts {
			if occursIn(candidate, p) {
				clash = true
				break
			}
		}
		if !clash {
			return candidate, nil
		}
	}

	return "", errs.New(errs.KindBody, errs.ErrEncodingFailed, "unable to generate unique boundary")
}

// occursIn checks in-memory part content; streams can't be inspected
// without consuming them.
func occursIn(boundary string, p Part) bool {
	if strings.Contains(p.Name, boundary) || strings.Contains(p.Filename, boundary) {
		return true
	}
	if bb, ok := p.Body.(*bytesBody); ok {
		return bytes.Contains(bb.data, []byte(boundary))
	}

	return false
}

// validBoundary applies the RFC 2046 limits: 1 to 70 characters from the
// bchars set, not ending in a space.
func validBoundary(boundary string) error {
	if len(boundary) < 1 || len(boundary) > 70 {
		return errs.New(errs.KindBody, errs.ErrEncodingFailed, "boundary must be 1-70 characters")
	}

	for i, r := range boundary {
		switch {
		case 'A' <= r && r <= 'Z', 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			continue
		case strings.ContainsRune("'()+_,-./:=?", r):
			continue
		case r == ' ' && i != len(boundary)-1:
			continue
		}
		return errs.New(errs.KindBody, errs.ErrEncodingFailed, fmt.Sprintf("invalid boundary character %q", r))
	}

	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}

	return path
}

// segment opens one piece of a chained body.
type segment func() (Producer, error)

func staticSegment(b []byte) segment {
	return func() (Producer, error) { return &sliceProducer{data: b}, nil }
}

// chainProducer concatenates segments, opening each on demand.
type chainProducer struct {
	segs []segment
	cur  Producer
}

func (c *chainProducer) Next() ([]byte, error) {
	for {
		if c.cur == nil {
			if len(c.segs) == 0 {
				return nil, io.EOF
			}
			p, err := c.segs[0]()
			if err != nil {
				return nil, err
			}
			c.segs = c.segs[1:]
			c.cur = p
		}

		chunk, err := c.cur.Next()
		if errors.Is(err, io.EOF) {
			if cerr := c.cur.Close(); cerr != nil {
				return nil, cerr
			}
			c.cur = nil
			if len(chunk) > 0 {
				return chunk, nil
			}
			continue
		}

		return chunk, err
	}
}

func (c *chainProducer) Close() error {
	c.segs = nil
	if c.cur != nil {
		err := c.cur.Close()
		c.cur = nil
		return err
	}

	return nil
}
