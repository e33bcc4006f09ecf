package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/lomsync/internal/util"
)

// Task represents a unit of work to be executed by the worker pool
type Task struct {
	// Name identifies the task in logs and results
	Name string

	// Execute is the function to run for this task.
	// ctx is cancelled when the task's handle is cancelled or the pool is force-stopped;
	// long tasks should check it between steps.
	Execute func(ctx context.Context) (interface{}, error)
}

// Result represents the outcome of executing a task
type Result struct {
	// Name identifies which task this result is from
	Name string

	// Data contains the successful result data (nil if error occurred)
	Data interface{}

	// Error contains any error that occurred during execution (nil if successful)
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration
}

type poolState int

const (
	poolRunning poolState = iota
	poolDraining
	poolStopped
)

// blockPollInterval is how often a RejectBlock submitter retries a full queue
const blockPollInterval = 5 * time.Millisecond

// Pool is an elastic worker pool fed by a bounded queue.
// MinWorkers are always alive; extra workers up to MaxWorkers are started when
// the queue is full and retire after IdleTimeout without work.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	// queue holds tasks waiting for a worker; closed by Shutdown
	queue chan *job

	// ctx parents every task context; cancelled on forced stop
	ctx    context.Context
	cancel context.CancelFunc

	// quit is closed on forced stop so workers exit at their next task boundary
	quit chan struct{}

	// mu protects state and the closing of queue
	mu    sync.RWMutex
	state poolState

	wg      sync.WaitGroup
	workers atomic.Int32
	idle    atomic.Int32
	nextID  atomic.Int64

	// active tracks handles of running tasks for forced termination
	active sync.Map

	submitted  atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	rejected   atomic.Int64
	callerRuns atomic.Int64
}

// job pairs a task with the handle that publishes its outcome
type job struct {
	task   Task
	handle *Handle
}

// PoolStats is a point-in-time view of the pool
type PoolStats struct {
	Workers    int   `json:"workers" yaml:"workers"`
	Idle       int   `json:"idle" yaml:"idle"`
	Queued     int   `json:"queued" yaml:"queued"`
	MinWorkers int   `json:"minWorkers" yaml:"minWorkers"`
	MaxWorkers int   `json:"maxWorkers" yaml:"maxWorkers"`
	Submitted  int64 `json:"submitted" yaml:"submitted"`
	Completed  int64 `json:"completed" yaml:"completed"`
	Failed     int64 `json:"failed" yaml:"failed"`
	Rejected   int64 `json:"rejected" yaml:"rejected"`
	CallerRuns int64 `json:"callerRuns" yaml:"callerRuns"`
}

// NewPool validates cfg and starts MinWorkers workers
func NewPool(cfg Config, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pool config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan *job, cfg.QueueCapacity),
		ctx:    ctx,
		cancel: cancel,
		quit:   make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		p.addWorker(nil)
	}

	p.logger.Debug("worker pool started",
		"min_workers", cfg.MinWorkers,
		"max_workers", cfg.MaxWorkers,
		"queue_capacity", cfg.QueueCapacity,
		"rejection", cfg.Rejection)

	return p, nil
}

// Submit schedules a task and returns its handle.
// If the pool is saturated the rejection policy applies; with RejectCallerRuns
// the task has already finished on the calling goroutine when Submit returns.
func (p *Pool) Submit(task Task) (*Handle, error) {
	if err := validateTask(task); err != nil {
		return nil, err
	}

	j := &job{task: task, handle: newHandle(p.ctx, task.Name)}
	if err := p.dispatch(j); err != nil {
		return nil, err
	}
	return j.handle, nil
}

// Go schedules a task whose outcome is observed only through its side effects
func (p *Pool) Go(task Task) error {
	_, err := p.Submit(task)
	return err
}

func validateTask(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task must have a name")
	}
	if task.Execute == nil {
		return fmt.Errorf("task must have an execute function")
	}
	return nil
}

// dispatch queues j, grows the pool, or applies the rejection policy
func (p *Pool) dispatch(j *job) error {
	queued, err := p.tryEnqueue(j)
	if err != nil || queued {
		return err
	}

	switch p.cfg.Rejection {
	case RejectAbort:
		p.rejected.Add(1)
		p.logger.Debug("task rejected, queue full", "task", j.task.Name)
		return fmt.Errorf("task %q: %w", j.task.Name, util.ErrQueueFull)

	case RejectBlock:
		ticker := time.NewTicker(blockPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.quit:
				return fmt.Errorf("task %q: %w", j.task.Name, util.ErrShutdown)
			case <-ticker.C:
			}
			queued, err := p.tryEnqueue(j)
			if err != nil || queued {
				return err
			}
		}

	default:
		p.submitted.Add(1)
		p.callerRuns.Add(1)
		p.logger.Debug("pool saturated, running task on caller", "task", j.task.Name)
		p.runJob(j)
		return nil
	}
}

// tryEnqueue hands j to the queue or to a new worker without blocking
func (p *Pool) tryEnqueue(j *job) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != poolRunning {
		return false, fmt.Errorf("pool is shutting down, cannot submit task %q: %w", j.task.Name, util.ErrShutdown)
	}

	select {
	case p.queue <- j:
		p.submitted.Add(1)
		// With MinWorkers == 0 the queue may have no consumer at all
		if p.workers.Load() == 0 {
			p.addWorker(nil)
		}
		return true, nil
	default:
	}

	if p.addWorker(j) {
		p.submitted.Add(1)
		return true, nil
	}
	return false, nil
}

// addWorker starts a worker if fewer than MaxWorkers are alive.
// Callers hold mu (read) or are themselves a live worker, so wg.Add never
// races with Shutdown's Wait.
func (p *Pool) addWorker(first *job) bool {
	for {
		n := p.workers.Load()
		if int(n) >= p.cfg.MaxWorkers {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			break
		}
	}

	id := p.nextID.Add(1)
	p.wg.Add(1)
	go p.worker(id, first)
	return true
}

// tryRetire decrements the worker count if it is above MinWorkers
func (p *Pool) tryRetire() bool {
	for {
		n := p.workers.Load()
		if int(n) <= p.cfg.MinWorkers {
			return false
		}
		if p.workers.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// worker runs tasks until the queue is closed and drained, it is idle too
// long, the pool is force-stopped, or a task panics
func (p *Pool) worker(id int64, first *job) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker_id", id)

	if first != nil && p.runJob(first) {
		p.retireAfterPanic(id)
		return
	}

	var timer *time.Timer
	if p.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(p.cfg.IdleTimeout)
		defer timer.Stop()
	}

	for {
		select {
		case <-p.quit:
			p.workers.Add(-1)
			p.logger.Debug("worker stopping, pool force-stopped", "worker_id", id)
			return
		default:
		}

		var idleC <-chan time.Time
		if timer != nil {
			timer.Reset(p.cfg.IdleTimeout)
			idleC = timer.C
		}

		p.idle.Add(1)
		select {
		case j, ok := <-p.queue:
			p.idle.Add(-1)
			if !ok {
				p.workers.Add(-1)
				p.logger.Debug("worker finished (queue closed)", "worker_id", id)
				return
			}
			if p.runJob(j) {
				p.retireAfterPanic(id)
				return
			}

		case <-idleC:
			p.idle.Add(-1)
			if p.tryRetire() {
				p.logger.Debug("worker retired after idle timeout", "worker_id", id)
				// A submitter that saw this worker alive did not start another
				if len(p.queue) > 0 {
					p.addWorker(nil)
				}
				return
			}

		case <-p.quit:
			p.idle.Add(-1)
			p.workers.Add(-1)
			p.logger.Debug("worker stopping, pool force-stopped", "worker_id", id)
			return
		}
	}
}

// retireAfterPanic replaces a worker that observed a panic with a fresh one
func (p *Pool) retireAfterPanic(id int64) {
	p.workers.Add(-1)
	p.logger.Warn("worker retired after task panic", "worker_id", id)

	select {
	case <-p.quit:
		return
	default:
	}
	p.addWorker(nil)
}

// runJob executes one task and publishes its result. It reports whether the
// task panicked; the panic itself is converted into the task's error.
func (p *Pool) runJob(j *job) (panicked bool) {
	h := j.handle
	if !h.begin() {
		p.logger.Debug("skipping task cancelled while queued", "task", j.task.Name)
		return false
	}

	if p.ctx.Err() != nil {
		h.complete(Result{
			Name:  j.task.Name,
			Error: fmt.Errorf("task %q not started, pool stopped: %w", j.task.Name, util.ErrCancelled),
		})
		return false
	}

	p.active.Store(h, struct{}{})
	defer p.active.Delete(h)

	startTime := time.Now()
	p.logger.Debug("executing task", "task", j.task.Name)

	var (
		data interface{}
		err  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = fmt.Errorf("task %q: %w: %v", j.task.Name, util.ErrTaskPanic, r)
				p.logger.Error("task panicked", "task", j.task.Name, "panic", r)
			}
		}()
		data, err = j.task.Execute(h.ctx)
	}()

	if err != nil && h.cancelRequested.Load() && errors.Is(err, context.Canceled) && !util.IsCancelled(err) {
		err = fmt.Errorf("%w: %w", util.ErrCancelled, err)
	}

	duration := time.Since(startTime)
	h.complete(Result{
		Name:     j.task.Name,
		Data:     data,
		Error:    err,
		Duration: duration,
	})

	p.completed.Add(1)
	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("task failed",
			"task", j.task.Name,
			"error", err,
			"duration", duration)
	} else {
		p.logger.Debug("task succeeded",
			"task", j.task.Name,
			"duration", duration)
	}

	return panicked
}

// Shutdown stops accepting tasks and lets queued and running tasks finish for
// up to grace. When grace elapses the pool is force-stopped: every task context
// is cancelled, queued tasks and still-running handles resolve as cancelled,
// and Shutdown returns an error wrapping util.ErrShutdownForced without waiting
// for tasks that ignore their context.
func (p *Pool) Shutdown(grace time.Duration) error {
	p.mu.Lock()
	if p.state != poolRunning {
		p.mu.Unlock()
		return fmt.Errorf("pool already shut down")
	}
	p.state = poolDraining
	if p.workers.Load() == 0 && len(p.queue) > 0 {
		p.addWorker(nil)
	}
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info("shutting down worker pool",
		"grace_period", grace,
		"queued", len(p.queue),
		"workers", p.workers.Load())

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-drained:
		p.mu.Lock()
		p.state = poolStopped
		p.mu.Unlock()
		p.cancel()
		if n := p.cancelQueued(); n > 0 {
			p.logger.Warn("queued tasks left without a worker were cancelled", "count", n)
		}
		p.logger.Info("worker pool shut down successfully")
		return nil
	case <-timer.C:
	}

	return p.forceStop(grace)
}

// forceStop cancels everything still pending after the grace period
func (p *Pool) forceStop(grace time.Duration) error {
	p.mu.Lock()
	p.state = poolStopped
	p.mu.Unlock()

	close(p.quit)
	p.cancel()

	cancelledQueued := p.cancelQueued()

	abandoned := 0
	p.active.Range(func(key, _ any) bool {
		h := key.(*Handle)
		h.complete(Result{
			Name:  h.name,
			Error: fmt.Errorf("task %q terminated at shutdown: %w", h.name, util.ErrCancelled),
		})
		abandoned++
		return true
	})

	p.logger.Warn("grace period elapsed, worker pool force-stopped",
		"grace_period", grace,
		"cancelled_queued", cancelledQueued,
		"abandoned_running", abandoned)

	return fmt.Errorf("%w: %d queued and %d running tasks cancelled", util.ErrShutdownForced, cancelledQueued, abandoned)
}

// cancelQueued resolves every task still in the closed queue as cancelled
func (p *Pool) cancelQueued() int {
	n := 0
	for j := range p.queue {
		if j.handle.begin() {
			j.handle.complete(Result{
				Name:  j.task.Name,
				Error: fmt.Errorf("task %q dropped at shutdown: %w", j.task.Name, util.ErrCancelled),
			})
		}
		n++
	}
	return n
}

// IsShutdown returns true once Shutdown has been called
func (p *Pool) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state != poolRunning
}

// WorkerCount returns the number of live workers
func (p *Pool) WorkerCount() int {
	return int(p.workers.Load())
}

// Config returns the pool's configuration
func (p *Pool) Config() Config {
	return p.cfg
}

// Stats returns a snapshot of pool activity
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:    int(p.workers.Load()),
		Idle:       int(p.idle.Load()),
		Queued:     len(p.queue),
		MinWorkers: p.cfg.MinWorkers,
		MaxWorkers: p.cfg.MaxWorkers,
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
		Rejected:   p.rejected.Load(),
		CallerRuns: p.callerRuns.Load(),
	}
}
