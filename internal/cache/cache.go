// Package cache is a cache-aside layer in front of a catalog.Repository.
//
// Reads share a reader/writer lock and load misses while holding the shared
// mode, so a writer that acquires the exclusive mode afterwards always sees and
// invalidates what those reads inserted. Writes and batch updates hold the
// exclusive mode across the repository call and the invalidation. Deletes go
// through a separate weighted semaphore whose acquisition is bounded, so a
// caller under contention gets false back instead of blocking.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/stats"
	"github.com/aryankumar/lomsync/internal/util"
)

// DefaultCapacity bounds the number of cached snapshots when no capacity is configured
const DefaultCapacity = 1024

// ResourceCache holds resource snapshots keyed by ID
type ResourceCache struct {
	repo     catalog.Repository
	logger   *slog.Logger
	pool     *executor.Pool
	counters *stats.Counters
	capacity int

	// rw orders reads against writes; entries is itself safe for concurrent use
	rw      sync.RWMutex
	entries *lru.Cache[int64, catalog.Resource]

	// deleteLock serializes destructive operations with a bounded wait
	deleteLock *semaphore.Weighted
}

// Option configures a ResourceCache
type Option func(*ResourceCache)

// WithCapacity bounds the number of cached snapshots
func WithCapacity(n int) Option {
	return func(c *ResourceCache) { c.capacity = n }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResourceCache) { c.logger = logger }
}

// WithPool enables LoadMany, SearchAsync and LanguageStatsAsync
func WithPool(pool *executor.Pool) Option {
	return func(c *ResourceCache) { c.pool = pool }
}

// WithCounters shares counters with another owner, such as a metrics collector
func WithCounters(counters *stats.Counters) Option {
	return func(c *ResourceCache) { c.counters = counters }
}

// New builds a cache in front of repo
func New(repo catalog.Repository, opts ...Option) (*ResourceCache, error) {
	if repo == nil {
		return nil, fmt.Errorf("cache requires a repository: %w", util.ErrInvalidConfig)
	}

	c := &ResourceCache{
		repo:       repo,
		capacity:   DefaultCapacity,
		deleteLock: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.counters == nil {
		c.counters = stats.NewCounters()
	}
	if c.capacity <= 0 {
		return nil, util.NewValidationError("cache.capacity", c.capacity, "must be positive")
	}

	entries, err := lru.New[int64, catalog.Resource](c.capacity)
	if err != nil {
		return nil, fmt.Errorf("create cache entries: %w", err)
	}
	c.entries = entries

	return c, nil
}

// ReadThrough returns the cached snapshot for id, loading it from the
// repository on a miss. Readers never block each other. A missing resource is
// reported as an error wrapping util.ErrResourceNotFound and is not cached.
func (c *ResourceCache) ReadThrough(ctx context.Context, id int64) (catalog.Resource, error) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	c.counters.IncQueries()

	if r, ok := c.entries.Get(id); ok {
		c.logger.Debug("cache hit", "id", id)
		return r, nil
	}

	loaded, err := c.repo.Find(ctx, id)
	if err != nil {
		if !util.IsNotFound(err) {
			c.counters.IncErrors()
		}
		return catalog.Resource{}, util.WrapRepositoryError("find", catalog.FormatKey(id), err)
	}

	c.entries.Add(id, *loaded)
	c.logger.Debug("cache miss, loaded from repository", "id", id)
	return *loaded, nil
}

// WriteThrough persists r and invalidates its cache entry. The entry is
// dropped even when the repository fails, since the stored state is unknown.
func (c *ResourceCache) WriteThrough(ctx context.Context, r catalog.Resource) error {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.counters.IncUpdates()

	err := c.repo.Update(ctx, r)
	c.entries.Remove(r.ID)

	if err != nil {
		c.counters.IncErrors()
		c.logger.Warn("write-through failed", "id", r.ID, "error", err)
		return util.WrapRepositoryError("update", r.Key(), err)
	}

	c.logger.Debug("write-through applied", "id", r.ID)
	return nil
}

// DeleteBounded deletes id from the repository and the cache if the delete
// lock is acquired within maxWait. A non-positive maxWait makes a single
// attempt. It returns false with a nil error when the lock was not acquired,
// including when ctx ends while waiting, and false with the repository error
// when the delete itself failed.
func (c *ResourceCache) DeleteBounded(ctx context.Context, id int64, maxWait time.Duration) (bool, error) {
	acquired, waitErr := c.acquireDelete(ctx, maxWait)
	if !acquired {
		if waitErr != nil {
			c.counters.IncErrors()
			c.logger.Warn("delete abandoned while waiting for lock", "id", id, "error", waitErr)
		} else {
			c.logger.Debug("delete lock not acquired", "id", id, "max_wait", maxWait)
		}
		return false, nil
	}
	defer c.deleteLock.Release(1)

	if err := c.repo.Delete(ctx, id); err != nil {
		c.counters.IncErrors()
		return false, util.WrapRepositoryError("delete", catalog.FormatKey(id), err)
	}

	// Exclusive mode so no in-flight read can re-insert the deleted snapshot
	c.rw.Lock()
	c.entries.Remove(id)
	c.rw.Unlock()

	c.counters.IncUpdates()
	c.logger.Debug("resource deleted", "id", id)
	return true, nil
}

// acquireDelete reports whether the delete lock was taken. The error is set
// only when ctx ended before maxWait did.
func (c *ResourceCache) acquireDelete(ctx context.Context, maxWait time.Duration) (bool, error) {
	if maxWait <= 0 {
		return c.deleteLock.TryAcquire(1), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := c.deleteLock.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

// BatchUpdate applies every update under the exclusive lock, in a single
// transaction when the repository supports it, and invalidates every key.
func (c *ResourceCache) BatchUpdate(ctx context.Context, resources []catalog.Resource) error {
	if len(resources) == 0 {
		return nil
	}

	c.rw.Lock()
	defer c.rw.Unlock()

	var err error
	if batcher, ok := c.repo.(catalog.BatchUpdater); ok {
		err = batcher.UpdateBatch(ctx, resources)
	} else {
		for _, r := range resources {
			if err = c.repo.Update(ctx, r); err != nil {
				break
			}
		}
	}

	for _, r := range resources {
		c.entries.Remove(r.ID)
	}

	if err != nil {
		c.counters.IncErrors()
		c.logger.Warn("batch update failed", "count", len(resources), "error", err)
		return util.WrapRepositoryError("update batch", "", err)
	}

	for range resources {
		c.counters.IncUpdates()
	}
	c.logger.Debug("batch update applied", "count", len(resources))
	return nil
}

// Clear drops every cached snapshot without touching the repository
func (c *ResourceCache) Clear() {
	c.rw.Lock()
	defer c.rw.Unlock()

	n := c.entries.Len()
	c.entries.Purge()
	c.logger.Debug("cache cleared", "entries", n)
}

// Len returns the number of cached snapshots
func (c *ResourceCache) Len() int {
	return c.entries.Len()
}

// Contains reports whether id is cached, without touching recency
func (c *ResourceCache) Contains(id int64) bool {
	return c.entries.Contains(id)
}

// Counters returns the service counters with the current cache size
func (c *ResourceCache) Counters() stats.ServiceCounters {
	return c.counters.Snapshot(c.entries.Len())
}

// ResetCounters zeroes queries, updates and errors
func (c *ResourceCache) ResetCounters() {
	c.counters.Reset()
}
