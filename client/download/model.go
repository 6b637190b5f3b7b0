package download

import (
	"errors"

	"github.com/adamwoolhether/reqflow/client/errs"
)

var (
	ErrContentLengthMismatch = errs.ErrContentLengthMismatch
	ErrChecksumMismatch      = errs.ErrChecksumMismatch
	ErrSinkFailed            = errs.ErrSinkFailed

	ErrDownloadCancelled = errors.New("download cancelled")
	ErrGroupShutdown     = errors.New("download group shut down")
	ErrBatchWithAdd      = errors.New("WithBatch cannot be used with Result.Add")
)

// ProgressFunc receives the bytes written so far and the expected total,
// which is -1 when unknown. It's called after every chunk is handed to
// storage.
type ProgressFunc func(transferred, total int64)
