package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// Handle streams body to destPath through the configured Storage. total
// is the expected byte count, or -1 if unknown.
//
// A failure part-way through leaves whatever was written at destPath;
// removing it is the caller's responsibility.
func Handle(ctx context.Context, body io.Reader, total int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := apply(optFns)
	if err != nil {
		return fmt.Errorf("applying option: %w", err)
	}

	if opts.skipExisting {
		st, ok := opts.storage.(Stater)
		if !ok {
			return errors.New("storage cannot report existing files")
		}
		exists, err := st.Exists(destPath)
		if err != nil {
			return errs.Wrap(errs.KindBody, errs.ErrSinkFailed, err, "checking destination")
		}
		if exists {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := opts.storage.CreateOrTruncate(destPath)
	if err != nil {
		return errs.Wrap(errs.KindBody, errs.ErrSinkFailed, err, "creating destination")
	}

	closed := false
	defer func() {
		if closed {
			return
		}
		if err := file.Close(); err != nil {
			logger.Error("defer closing destination", "path", destPath, "error", err)
		}
	}()

	sink := &sinkWriter{w: file}

	var writer io.Writer = sink
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	pw := &progressWriter{
		w:         writer,
		callbacks: opts.progress,
		total:     total,
		startTime: time.Now(),
	}
	if opts.progressLog {
		pw.logger = logger
	}

	n, err := io.Copy(pw, body)
	if err != nil {
		return copyErr(ctx, sink, err)
	}

	if total >= 0 && n != total {
		return errs.New(errs.KindBody, errs.ErrContentLengthMismatch, fmt.Sprintf("expected %d bytes, got %d", total, n))
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if s, ok := file.(Syncer); ok {
		if err := s.Sync(); err != nil {
			return errs.Wrap(errs.KindBody, errs.ErrSinkFailed, err, "syncing destination")
		}
	}

	closed = true
	if err := file.Close(); err != nil {
		return errs.Wrap(errs.KindBody, errs.ErrSinkFailed, err, "closing destination")
	}

	pw.complete()

	return nil
}

// copyErr classifies a failed copy as a storage or a source failure.
func copyErr(ctx context.Context, sink *sinkWriter, err error) error {
	if sink.err != nil {
		return errs.Wrap(errs.KindBody, errs.ErrSinkFailed, sink.err, "writing destination")
	}

	var classified *errs.Error
	switch {
	case errors.As(err, &classified):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, errs.ErrTimeout, err, "reading body")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return errs.Wrap(errs.KindBody, ErrDownloadCancelled, err, "")
	default:
		return errs.Wrap(errs.KindBody, errs.ErrTransport, err, "reading body")
	}
}

// sinkWriter remembers storage write failures.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil && s.err == nil {
		s.err = err
	}

	return n, err
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
