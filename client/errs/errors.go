// Package errs defines the error taxonomy shared by every stage of the
// request pipeline.
//
// Each failure is reported as an [*Error] carrying a [Kind] and a sentinel.
// Callers match on the sentinel with [errors.Is] or inspect the kind with
// [errors.As]:
//
//	var e *errs.Error
//	if errors.As(err, &e) && e.Kind == errs.KindRedirect {
//		...
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind groups related sentinels.
type Kind int

const (
	KindBuilder Kind = iota + 1
	KindConnect
	KindTransport
	KindRedirect
	KindBody
	KindDecode
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBuilder:
		return "builder"
	case KindConnect:
		return "connect"
	case KindTransport:
		return "transport"
	case KindRedirect:
		return "redirect"
	case KindBody:
		return "body"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Builder errors are returned before any I/O is attempted.
var (
	ErrInvalidURI        = errors.New("invalid uri")
	ErrInvalidMethod     = errors.New("invalid method")
	ErrInvalidHeader     = errors.New("invalid header")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrBodyConflict      = errors.New("body already set")
	ErrInvalidOption     = errors.New("invalid option")
)

// Connect errors.
var (
	ErrTLSHandshakeFailed = errors.New("tls handshake failed")
	ErrConnectionRefused  = errors.New("connection refused")
)

// ErrTransport wraps any lower-layer I/O failure not classified otherwise.
var ErrTransport = errors.New("transport failure")

// Redirect errors.
var (
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrInvalidLocation   = errors.New("invalid redirect location")
	ErrBodyNotReplayable = errors.New("body not replayable")
)

// Body errors.
var (
	ErrEncodingFailed        = errors.New("body encoding failed")
	ErrSizeLimitExceeded     = errors.New("body size limit exceeded")
	ErrAlreadyConsumed       = errors.New("body already consumed")
	ErrSinkFailed            = errors.New("body sink failed")
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
)

// Decode errors.
var (
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrDecompressFailed       = errors.New("decompression failed")
	ErrCharsetDecodeFailed    = errors.New("charset decode failed")
	ErrUnmarshalFailed        = errors.New("structured decode failed")
)

// ErrTimeout is reported when a configured deadline expires.
var ErrTimeout = errors.New("timeout")

// Error is the single discriminated failure type of the pipeline.
type Error struct {
	Kind   Kind
	Err    error
	Detail string
	Cause  error

	// Data holds the bytes read before a decode failure, so raw content
	// stays retrievable.
	Data []byte
}

// New constructs an *Error of kind k for the sentinel err.
func New(k Kind, err error, detail string) *Error {
	return &Error{Kind: k, Err: err, Detail: detail}
}

// Wrap constructs an *Error of kind k for sentinel err caused by cause.
func Wrap(k Kind, err error, cause error, detail string) *Error {
	return &Error{Kind: k, Err: err, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}

// KindOf reports the Kind of the first *Error in err's tree, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}
