package cli

import (
	"errors"

	"github.com/adamwoolhether/reqflow/client"
)

// Exit codes for the reqflow CLI.
const (
	// ExitSuccess indicates the request completed with a 2xx status.
	ExitSuccess = 0

	// ExitHTTPError indicates a non-2xx status while --fail was set.
	ExitHTTPError = 1

	// ExitRequestError indicates the request could not be built.
	ExitRequestError = 2

	// ExitConfigError indicates an invalid profile or client option.
	ExitConfigError = 3

	// ExitNetworkError indicates a connect or transport failure.
	ExitNetworkError = 4

	// ExitRedirectError indicates the redirect chain could not be followed.
	ExitRedirectError = 5

	// ExitBodyError indicates the response body could not be read or decoded.
	ExitBodyError = 6

	// ExitTimeout indicates a deadline expired.
	ExitTimeout = 7

	// ExitUsageError indicates invalid CLI usage.
	ExitUsageError = 64
)

// ExitError carries the exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCode maps err to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}

	var use *client.UnexpectedStatusError
	if errors.As(err, &use) {
		return ExitHTTPError
	}

	switch client.KindOf(err) {
	case client.KindBuilder:
		return ExitRequestError
	case client.KindConnect, client.KindTransport:
		return ExitNetworkError
	case client.KindRedirect:
		return ExitRedirectError
	case client.KindBody, client.KindDecode:
		return ExitBodyError
	case client.KindTimeout:
		return ExitTimeout
	default:
		return ExitUsageError
	}
}
