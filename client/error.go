package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// maxErrBodySize caps the amount of response body read when
// building an error for an unexpected status code. This prevents
// unbounded memory usage when a large response arrives with a
// wrong status.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError is returned by [Response.ExpectStatus] and
// [Client.Download] when the status code isn't the expected one.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func newUnexpectedStatusError(code int, body string) *UnexpectedStatusError {
	err := ErrUnexpectedStatusCode
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{StatusCode: code, Body: body, Err: err}
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", ErrUnexpectedStatusCode, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// ————————————————————————————————————————————————————————————————————
// Re-exported error taxonomy from [errs].
// ————————————————————————————————————————————————————————————————————

type (
	// Error is the discriminated failure type of every execution stage.
	Error = errs.Error

	// ErrorKind groups related sentinels.
	ErrorKind = errs.Kind
)

// KindOf returns the kind of the first [*Error] in err's chain, or 0.
func KindOf(err error) ErrorKind { return errs.KindOf(err) }

const (
	KindBuilder   = errs.KindBuilder
	KindConnect   = errs.KindConnect
	KindTransport = errs.KindTransport
	KindRedirect  = errs.KindRedirect
	KindBody      = errs.KindBody
	KindDecode    = errs.KindDecode
	KindTimeout   = errs.KindTimeout
)

var (
	ErrInvalidURI        = errs.ErrInvalidURI
	ErrInvalidMethod     = errs.ErrInvalidMethod
	ErrInvalidHeader     = errs.ErrInvalidHeader
	ErrUnsupportedScheme = errs.ErrUnsupportedScheme
	ErrBodyConflict      = errs.ErrBodyConflict
	ErrInvalidOption     = errs.ErrInvalidOption

	ErrTLSHandshakeFailed = errs.ErrTLSHandshakeFailed
	ErrConnectionRefused  = errs.ErrConnectionRefused
	ErrTransport          = errs.ErrTransport

	ErrTooManyRedirects  = errs.ErrTooManyRedirects
	ErrInvalidLocation   = errs.ErrInvalidLocation
	ErrBodyNotReplayable = errs.ErrBodyNotReplayable

	ErrEncodingFailed    = errs.ErrEncodingFailed
	ErrSizeLimitExceeded = errs.ErrSizeLimitExceeded
	ErrAlreadyConsumed   = errs.ErrAlreadyConsumed
	ErrSinkFailed        = errs.ErrSinkFailed

	ErrUnsupportedCompression = errs.ErrUnsupportedCompression
	ErrDecompressFailed       = errs.ErrDecompressFailed
	ErrCharsetDecodeFailed    = errs.ErrCharsetDecodeFailed
	ErrUnmarshalFailed        = errs.ErrUnmarshalFailed

	ErrTimeout = errs.ErrTimeout
)
