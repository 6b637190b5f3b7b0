package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for downloading files.
// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
//
// WithProgress registers a callback receiving byte counts after every
// chunk. WithProgressLog logs progress via the logger supplied to Handle.
//
// WithSkipExisting causes Handle to return nil immediately when
// the destination file already exists, avoiding a redundant download.
type Option func(*options) error

type options struct {
	checksum     *checksumVerifier
	progress     []ProgressFunc
	progressLog  bool
	skipExisting bool
	storage      Storage
	batch        *int
	queue        *Queue
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		h.Reset()
		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		opts.progress = append(opts.progress, fn)
		return nil
	}
}

func WithProgressLog() Option {
	return func(opts *options) error {
		opts.progressLog = true
		return nil
	}
}

func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithStorage replaces the default Disk storage.
func WithStorage(s Storage) Option {
	return func(opts *options) error {
		if s == nil {
			return errors.New("storage must not be nil")
		}
		opts.storage = s
		return nil
	}
}

// WithBatch activates batch mode by creating a download queue with the given
// concurrency limit. If maxConcurrent <= 0, concurrency is unlimited.
func WithBatch(maxConcurrent int) Option {
	return func(opts *options) error {
		if opts.queue != nil {
			return ErrBatchWithAdd
		}
		opts.batch = &maxConcurrent
		return nil
	}
}

// withQueue joins an existing batch; used by Result.Add.
func withQueue(q *Queue) Option {
	return func(opts *options) error {
		if opts.batch != nil {
			return ErrBatchWithAdd
		}
		opts.queue = q
		return nil
	}
}

func apply(optFns []Option) (options, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, err
		}
	}
	if opts.storage == nil {
		opts.storage = Disk{}
	}

	return opts, nil
}

// QueueFor returns the Queue the options select: the batch a Result.Add
// joins, a new one sized by WithBatch, or a fresh unlimited Queue.
func QueueFor(optFns ...Option) (*Queue, error) {
	opts, err := apply(optFns)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.queue != nil:
		return opts.queue, nil
	case opts.batch != nil:
		return NewQueue(*opts.batch), nil
	default:
		return NewQueue(0), nil
	}
}
