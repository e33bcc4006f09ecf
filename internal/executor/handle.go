package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/lomsync/internal/util"
)

const (
	statePending int32 = iota
	stateRunning
	stateDone
)

// Handle refers to the eventual outcome of a submitted task.
// It can be polled, awaited with a timeout, or cancelled.
type Handle struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc

	state           atomic.Int32
	cancelRequested atomic.Bool

	once   sync.Once
	done   chan struct{}
	result Result
}

func newHandle(parent context.Context, name string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Name returns the task name
func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the outcome is available
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// IsDone reports whether the outcome is available without blocking
func (h *Handle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome if it is available
func (h *Handle) Result() (Result, bool) {
	if !h.IsDone() {
		return Result{}, false
	}
	return h.result, true
}

// Wait blocks until the task finishes or ctx ends.
// A task failure is reported in Result.Error; the returned error is only set
// when ctx ended first, and wraps util.ErrCancelled.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if h.IsDone() {
		return h.result, nil
	}

	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{Name: h.name}, fmt.Errorf("waiting for task %q: %w: %w", h.name, util.ErrCancelled, ctx.Err())
	}
}

// WaitTimeout is Wait bounded by d. When d elapses first the returned error
// wraps util.ErrTimeout and the task keeps running; call Cancel to stop it.
// A non-positive d waits without a bound.
func (h *Handle) WaitTimeout(ctx context.Context, d time.Duration) (Result, error) {
	if d <= 0 {
		return h.Wait(ctx)
	}
	if h.IsDone() {
		return h.result, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{Name: h.name}, fmt.Errorf("waiting for task %q: %w: %w", h.name, util.ErrCancelled, ctx.Err())
	case <-timer.C:
		return Result{Name: h.name}, fmt.Errorf("task %q not finished after %s: %w", h.name, d, util.ErrTimeout)
	}
}

// Cancel asks the task to stop. A queued task never starts and resolves as
// cancelled; a running task sees its context cancelled and stops at its next
// checkpoint. Side effects already committed are not undone.
// Returns false if the task had already finished.
func (h *Handle) Cancel() bool {
	if h.IsDone() {
		return false
	}

	h.cancelRequested.Store(true)
	h.cancel()

	if h.state.CompareAndSwap(statePending, stateDone) {
		h.complete(Result{
			Name:  h.name,
			Error: fmt.Errorf("task %q cancelled before start: %w", h.name, util.ErrCancelled),
		})
	}
	return true
}

// begin moves the handle to running; false means it was cancelled while queued
func (h *Handle) begin() bool {
	return h.state.CompareAndSwap(statePending, stateRunning)
}

// complete publishes the outcome exactly once. Later calls are ignored, so a
// task that returns after a forced shutdown cannot overwrite the cancellation.
func (h *Handle) complete(res Result) {
	h.once.Do(func() {
		h.result = res
		h.state.Store(stateDone)
		h.cancel()
		close(h.done)
	})
}
