package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/util"
)

func (c *ResourceCache) requirePool() error {
	if c.pool == nil {
		return fmt.Errorf("cache has no worker pool: %w", util.ErrInvalidConfig)
	}
	return nil
}

// LoadMany reads ids in parallel through the cache and waits for all of them
// up to timeout; a non-positive timeout waits without a bound. Resources are
// returned in ids order and missing ones are skipped. When timeout elapses the
// resources loaded so far are returned with an error wrapping util.ErrTimeout.
func (c *ResourceCache) LoadMany(ctx context.Context, ids []int64, timeout time.Duration) ([]catalog.Resource, error) {
	if err := c.requirePool(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		loadCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		loadCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	handles := make([]*executor.Handle, 0, len(ids))
	for _, id := range ids {
		id := id
		h, err := c.pool.Submit(executor.Task{
			Name: "load " + catalog.FormatKey(id),
			Execute: func(_ context.Context) (interface{}, error) {
				return c.ReadThrough(loadCtx, id)
			},
		})
		if err != nil {
			c.logger.Warn("load not scheduled", "id", id, "error", err)
			continue
		}
		handles = append(handles, h)
	}

	results := executor.Collect(loadCtx, handles)
	c.logger.Debug("parallel load finished", "requested", len(ids), "summary", executor.Summarize(results).String())

	out := make([]catalog.Resource, 0, len(results))
	unfinished := 0
	for _, res := range results {
		if res.Error != nil {
			if interrupted(res.Error) {
				unfinished++
			} else {
				c.logger.Debug("load skipped", "task", res.Name, "error", res.Error)
			}
			continue
		}
		if r, ok := res.Data.(catalog.Resource); ok {
			out = append(out, r)
		}
	}

	if unfinished == 0 {
		return out, nil
	}

	c.logger.Warn("not every resource loaded before the deadline", "loaded", len(out), "requested", len(ids))
	if ctx.Err() != nil {
		return out, fmt.Errorf("loading %d resources: %w: %w", len(ids), util.ErrCancelled, ctx.Err())
	}
	return out, fmt.Errorf("loading %d resources after %s: %w", len(ids), timeout, util.ErrTimeout)
}

// interrupted reports whether a load ended because its wait did rather than
// because the repository answered
func interrupted(err error) bool {
	return util.IsTimeout(err) || util.IsCancelled(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// SearchAsync lists the repository on the pool and keeps resources whose
// title contains keyword, ignoring case. The handle's Data is a []catalog.Resource.
func (c *ResourceCache) SearchAsync(keyword string) (*executor.Handle, error) {
	if err := c.requirePool(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(keyword))
	return c.pool.Submit(executor.Task{
		Name: "search " + keyword,
		Execute: func(ctx context.Context) (interface{}, error) {
			c.counters.IncQueries()
			all, err := c.repo.List(ctx)
			if err != nil {
				c.counters.IncErrors()
				return nil, util.WrapRepositoryError("list", "", err)
			}

			matches := make([]catalog.Resource, 0)
			for _, r := range all {
				if strings.Contains(strings.ToLower(r.Title), needle) {
					matches = append(matches, r)
				}
			}
			return matches, nil
		},
	})
}

// Search runs SearchAsync and waits for it
func (c *ResourceCache) Search(ctx context.Context, keyword string) ([]catalog.Resource, error) {
	h, err := c.SearchAsync(keyword)
	if err != nil {
		return nil, err
	}
	res, err := h.Wait(ctx)
	if err != nil {
		h.Cancel()
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Data.([]catalog.Resource), nil
}

// LanguageCount is the number of resources in one language
type LanguageCount struct {
	Language string `json:"language" yaml:"language"`
	Count    int64  `json:"count" yaml:"count"`
}

// LanguageStatsAsync counts resources per language on the pool. Resources
// without a language are left out. The handle's Data is a []LanguageCount
// sorted by descending count, then language.
func (c *ResourceCache) LanguageStatsAsync() (*executor.Handle, error) {
	if err := c.requirePool(); err != nil {
		return nil, err
	}

	return c.pool.Submit(executor.Task{
		Name: "language stats",
		Execute: func(ctx context.Context) (interface{}, error) {
			c.counters.IncQueries()
			all, err := c.repo.List(ctx)
			if err != nil {
				c.counters.IncErrors()
				return nil, util.WrapRepositoryError("list", "", err)
			}

			counts := make(map[string]int64)
			for _, r := range all {
				if r.Language == "" {
					continue
				}
				counts[r.Language]++
			}

			out := make([]LanguageCount, 0, len(counts))
			for lang, n := range counts {
				out = append(out, LanguageCount{Language: lang, Count: n})
			}
			sort.Slice(out, func(i, j int) bool {
				if out[i].Count != out[j].Count {
					return out[i].Count > out[j].Count
				}
				return out[i].Language < out[j].Language
			})
			return out, nil
		},
	})
}

// LanguageStats runs LanguageStatsAsync and waits for it
func (c *ResourceCache) LanguageStats(ctx context.Context) ([]LanguageCount, error) {
	h, err := c.LanguageStatsAsync()
	if err != nil {
		return nil, err
	}
	res, err := h.Wait(ctx)
	if err != nil {
		h.Cancel()
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Data.([]LanguageCount), nil
}
