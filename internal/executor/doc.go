// Package executor provides the elastic worker pool that runs ingestion and
// cache tasks in parallel.
//
// The pool keeps MinWorkers goroutines alive, queues up to QueueCapacity tasks,
// grows to MaxWorkers when the queue is full, and retires the extra workers
// after IdleTimeout without work. When MaxWorkers are busy and the queue is full
// the configured RejectionPolicy decides what happens to a new task.
//
// # Basic Usage
//
//	pool, err := executor.NewPool(executor.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown(30 * time.Second)
//
//	h, err := pool.Submit(executor.Task{
//	    Name: "intro-to-go",
//	    Execute: func(ctx context.Context) (interface{}, error) {
//	        return repo.Create(ctx, item)
//	    },
//	})
//
//	res, err := h.WaitTimeout(ctx, 5*time.Second)
//	if util.IsTimeout(err) {
//	    h.Cancel()
//	}
//
// # Handles
//
// Submit returns a Handle that can be polled (IsDone, Result), awaited (Wait,
// WaitTimeout) or cancelled (Cancel). Cancellation is cooperative: a queued task
// never starts, a running task sees its context cancelled. Go submits a task
// without exposing its handle.
//
// # Rejection Policies
//
//   - RejectCallerRuns: the submitting goroutine runs the task itself (default)
//   - RejectAbort: Submit returns an error wrapping util.ErrQueueFull
//   - RejectBlock: Submit waits for queue space
//
// # Shutdown
//
// Shutdown(grace) stops accepting tasks and waits up to grace for queued and
// running tasks. After grace the pool is force-stopped: task contexts are
// cancelled, unfinished handles resolve with util.ErrCancelled, and Shutdown
// returns util.ErrShutdownForced without waiting for tasks that ignore their
// context.
//
// # Error Handling
//
// Task errors and panics are captured in Result.Error and never stop a worker
// from serving other tasks. A worker that recovered a panic retires and is
// replaced.
package executor
