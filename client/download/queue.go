package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// WorkFunc is the signature for async work.
type WorkFunc func(ctx context.Context) error

// Queue manages a batch of concurrent async downloads.
type Queue struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewQueue creates a Queue with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewQueue(maxConcurrent int) *Queue {
	q := &Queue{}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}
	return q
}

// Wait blocks until all downloads in the group complete.
// Returns all errors joined via errors.Join.
func (g *Queue) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

// Shutdown prevents new work from executing in this group.
func (g *Queue) Shutdown() {
	g.shutdown.Store(true)
}

// Start launches fn in a new goroutine managed by the group
// and returns a Task for tracking the individual download.
func (g *Queue) Start(ctx context.Context, fn WorkFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		done:   make(chan struct{}),
		cancel: cancel,
		group:  g,
	}

	g.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(t.done)
			g.wg.Done()
		}()

		if g.sem != nil {
			select {
			case g.sem <- struct{}{}:
				defer func() {
					<-g.sem
				}()
			case <-ctx.Done():
				t.err = ctx.Err()
				g.recordErr(t.err)
				return
			}
		}

		if g.shutdown.Load() {
			t.err = ErrGroupShutdown
			g.recordErr(t.err)
			return
		}

		t.err = fn(ctx)
		if t.err != nil {
			g.recordErr(t.err)
		}
	}()

	return t
}

// recordErr appends err to the group's error slice under the mutex.
func (g *Queue) recordErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, err)
}
