package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/util"
)

// Creator creates one resource from an item. Implementations must be safe for
// concurrent use; catalog.Repository satisfies it.
type Creator interface {
	Create(ctx context.Context, item catalog.Item) (*catalog.Resource, error)
}

// CreatorFunc adapts a function to Creator
type CreatorFunc func(ctx context.Context, item catalog.Item) (*catalog.Resource, error)

// Create implements Creator
func (f CreatorFunc) Create(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
	return f(ctx, item)
}

// Importer turns items into pool tasks and folds their outcomes
type Importer struct {
	pool    *executor.Pool
	creator Creator
	logger  *slog.Logger
	newID   func() string
}

// Option configures an Importer
type Option func(*Importer)

// WithIDGenerator replaces the batch ID source
func WithIDGenerator(fn func() string) Option {
	return func(im *Importer) { im.newID = fn }
}

// NewImporter builds an importer that runs creator on pool
func NewImporter(pool *executor.Pool, creator Creator, logger *slog.Logger, opts ...Option) (*Importer, error) {
	if pool == nil {
		return nil, fmt.Errorf("importer requires a worker pool: %w", util.ErrInvalidConfig)
	}
	if creator == nil {
		return nil, fmt.Errorf("importer requires a creator: %w", util.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	im := &Importer{
		pool:    pool,
		creator: creator,
		logger:  logger,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im, nil
}

// create validates and creates one item, attributing failures to it
func (im *Importer) create(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
	if err := item.Validate(); err != nil {
		return nil, util.WrapTaskError(item.Label(), err)
	}
	r, err := im.creator.Create(ctx, item)
	if err != nil {
		return nil, util.WrapTaskError(item.Label(), err)
	}
	return r, nil
}

func (im *Importer) task(item catalog.Item) executor.Task {
	return executor.Task{
		Name: item.Label(),
		Execute: func(ctx context.Context) (interface{}, error) {
			return im.create(ctx, item)
		},
	}
}

// ImportBatch submits every item to the pool, then awaits the handles in input
// order, each for up to perItemTimeout. A handle that times out is cancelled
// and recorded as timed out. When ctx ends, the item being awaited and every
// remaining one are cancelled and recorded as such; the result is still
// returned, together with an error wrapping util.ErrCancelled. obs may be nil.
func (im *Importer) ImportBatch(ctx context.Context, items []catalog.Item, perItemTimeout time.Duration, obs Observer) (*BatchResult, error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}

	start := time.Now()
	batch := newBatchResult(im.newID(), ModeOrdered, len(items))
	logger := im.logger.With("batch", batch.ID)
	logger.Info("starting batch import", "items", len(items), "mode", ModeOrdered, "per_item_timeout", perItemTimeout)

	handles := make([]*executor.Handle, len(items))
	submitErrs := make([]error, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		handles[i], submitErrs[i] = im.pool.Submit(im.task(item))
	}

	var interruptErr error
	for i, item := range items {
		var o Outcome
		h := handles[i]

		switch {
		case interruptErr != nil || (h == nil && submitErrs[i] == nil):
			if h != nil {
				h.Cancel()
			}
			o = cancelled(item, interruptErr)
			if interruptErr == nil {
				interruptErr = fmt.Errorf("%w: %w", util.ErrCancelled, ctx.Err())
				o.Err = interruptErr
			}

		case submitErrs[i] != nil:
			o = failed(item, util.WrapTaskError(item.Label(), submitErrs[i]))

		default:
			o, interruptErr = im.await(ctx, h, item, perItemTimeout)
		}

		batch.record(o)
		if o.Kind != OutcomeSuccess {
			obs.OnError(item.Label(), o.Err)
			logger.Warn("item not imported", "item", item.Label(), "outcome", o.Kind, "reason", o.Reason)
		}
		obs.OnProgress(i+1, len(items), item.Label())
	}

	batch.Complete = interruptErr == nil
	batch.Duration = time.Since(start)
	obs.OnComplete(batch.SuccessCount, batch.FailureCount)

	logger.Info("batch import finished",
		"succeeded", batch.SuccessCount,
		"failed", batch.FailureCount,
		"timed_out", batch.Count(OutcomeTimedOut),
		"cancelled", batch.Count(OutcomeCancelled),
		"duration", batch.Duration)

	if interruptErr != nil {
		return batch, fmt.Errorf("batch %s interrupted: %w", batch.ID, interruptErr)
	}
	return batch, nil
}

// await resolves one handle. The returned error is set only when ctx ended.
func (im *Importer) await(ctx context.Context, h *executor.Handle, item catalog.Item, timeout time.Duration) (Outcome, error) {
	res, err := h.WaitTimeout(ctx, timeout)
	switch {
	case err != nil && util.IsTimeout(err):
		h.Cancel()
		return timedOut(item, util.WrapTaskError(item.Label(), err)), nil

	case err != nil:
		h.Cancel()
		return cancelled(item, err), err

	case res.Error != nil && util.IsCancelled(res.Error):
		return cancelled(item, res.Error), nil

	case res.Error != nil:
		return failed(item, res.Error), nil

	default:
		r, _ := res.Data.(*catalog.Resource)
		return succeeded(item, r), nil
	}
}

// ImportWithBarrier fans every item out with Pool.Go and waits until each task
// has counted down or deadline elapses, whichever is first. Outcomes gathered
// by then are reported in input order; items still running are counted in
// Pending and the result is marked incomplete. A non-positive deadline waits
// for every item. An error wrapping util.ErrCancelled is returned only when
// ctx itself ended.
func (im *Importer) ImportWithBarrier(ctx context.Context, items []catalog.Item, deadline time.Duration) (*BatchResult, error) {
	start := time.Now()
	batch := newBatchResult(im.newID(), ModeBarrier, len(items))
	logger := im.logger.With("batch", batch.ID)
	logger.Info("starting batch import", "items", len(items), "mode", ModeBarrier, "deadline", deadline)

	var (
		batchCtx context.Context
		cancel   context.CancelFunc
	)
	if deadline > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, deadline)
	} else {
		batchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		collected = make(map[int]Outcome, len(items))
	)
	collect := func(i int, o Outcome) {
		mu.Lock()
		collected[i] = o
		mu.Unlock()
	}

	wg.Add(len(items))
	for i, item := range items {
		i, item := i, item
		err := im.pool.Go(executor.Task{
			Name: item.Label(),
			Execute: func(taskCtx context.Context) (interface{}, error) {
				defer wg.Done()

				itemCtx, cancelItem := context.WithCancel(taskCtx)
				defer cancelItem()
				stop := context.AfterFunc(batchCtx, cancelItem)
				defer stop()

				r, err := im.create(itemCtx, item)
				if err != nil {
					collect(i, failed(item, err))
					return nil, err
				}
				collect(i, succeeded(item, r))
				return r, nil
			},
		})
		if err != nil {
			wg.Done()
			collect(i, failed(item, util.WrapTaskError(item.Label(), err)))
		}
	}

	released := make(chan struct{})
	go func() {
		wg.Wait()
		close(released)
	}()

	select {
	case <-released:
	case <-batchCtx.Done():
	}

	mu.Lock()
	for i := range items {
		if o, ok := collected[i]; ok {
			batch.record(o)
		} else {
			batch.Pending++
		}
	}
	mu.Unlock()

	batch.Complete = batch.Pending == 0
	batch.Duration = time.Since(start)

	if !batch.Complete {
		logger.Warn("barrier deadline elapsed before every item finished",
			"pending", batch.Pending, "deadline", deadline)
	}
	logger.Info("batch import finished",
		"succeeded", batch.SuccessCount,
		"failed", batch.FailureCount,
		"pending", batch.Pending,
		"duration", batch.Duration)

	if ctx.Err() != nil && !batch.Complete {
		return batch, fmt.Errorf("batch %s interrupted: %w: %w", batch.ID, util.ErrCancelled, ctx.Err())
	}
	return batch, nil
}

// ImportParallel creates every item with at most parallelism concurrent calls
// (NumCPU when parallelism <= 0), bypassing the pool. Failed items are dropped;
// the created resources keep input order.
func (im *Importer) ImportParallel(ctx context.Context, items []catalog.Item, parallelism int) []*catalog.Resource {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	results := make([]*catalog.Resource, len(items))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := im.create(ctx, item)
			if err != nil {
				im.logger.Debug("item dropped from parallel import", "item", item.Label(), "error", err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*catalog.Resource, 0, len(items))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}

	im.logger.Info("parallel import finished", "items", len(items), "created", len(out), "parallelism", parallelism)
	return out
}
