package download

import (
	"context"
	"slices"
)

// Task is a single unit of work running in a Queue.
type Task struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	group  *Queue
}

// Done returns a channel that is closed when the specific download completes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err blocks until this download completes and returns its error.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// Wait blocks until all downloads in the group complete.
// Returns all errors joined.
func (t *Task) Wait() error {
	return t.group.Wait()
}

// Cancel cancels this download's context.
func (t *Task) Cancel() {
	t.cancel()
}

// Queue returns the batch this task belongs to.
func (t *Task) Queue() *Queue { return t.group }

// Adder enqueues another download of request R. It's injected by the
// client so Result.Add can reuse the client's execution path.
type Adder[R any] func(req R, destPath string, opts ...Option) (*Result[R], error)

// Result represents an in-flight or completed async download.
type Result[R any] struct {
	*Task
	adder Adder[R]
}

// NewResult pairs a started Task with the Adder used by Result.Add.
func NewResult[R any](t *Task, adder Adder[R]) *Result[R] {
	return &Result[R]{Task: t, adder: adder}
}

// Add another download to the same batch.
// It calls the injected Adder and reuses the existing Queue.
// WithBatch cannot be used with this method.
//
// Validation errors (empty destPath, conflicting options) are recorded
// in the queue so that [Task.Wait] returns them; the caller does not
// need to check each Add individually.
func (r *Result[R]) Add(req R, destPath string, optFns ...Option) *Result[R] {
	result, err := r.adder(req, destPath, slices.Concat([]Option{withQueue(r.group)}, optFns)...)
	if err != nil {
		done := make(chan struct{})
		close(done)
		r.group.recordErr(err)
		return &Result[R]{
			Task: &Task{
				done:   done,
				err:    err,
				cancel: func() {},
				group:  r.group,
			},
			adder: r.adder,
		}
	}
	return result
}
