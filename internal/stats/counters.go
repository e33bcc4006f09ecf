// Package stats keeps the cache service counters and exposes them, together
// with worker pool gauges, as Prometheus metrics.
package stats

import "sync/atomic"

// ServiceCounters is a point-in-time view of cache activity
type ServiceCounters struct {
	Queries   int64 `json:"queries" yaml:"queries"`
	Updates   int64 `json:"updates" yaml:"updates"`
	Errors    int64 `json:"errors" yaml:"errors"`
	CacheSize int   `json:"cacheSize" yaml:"cacheSize"`
}

// Counters are monotonic activity counters safe for concurrent use.
// Reset is the only operation that lowers them.
type Counters struct {
	queries atomic.Int64
	updates atomic.Int64
	errors  atomic.Int64
}

// NewCounters returns zeroed counters
func NewCounters() *Counters {
	return &Counters{}
}

// IncQueries records one read-through request
func (c *Counters) IncQueries() {
	c.queries.Add(1)
}

// IncUpdates records one completed write-through or delete
func (c *Counters) IncUpdates() {
	c.updates.Add(1)
}

// IncErrors records one failed cache operation
func (c *Counters) IncErrors() {
	c.errors.Add(1)
}

// Snapshot reads the counters; cacheSize is supplied by the owner of the entries
func (c *Counters) Snapshot(cacheSize int) ServiceCounters {
	return ServiceCounters{
		Queries:   c.queries.Load(),
		Updates:   c.updates.Load(),
		Errors:    c.errors.Load(),
		CacheSize: cacheSize,
	}
}

// Reset zeroes the counters
func (c *Counters) Reset() {
	c.queries.Store(0)
	c.updates.Store(0)
	c.errors.Store(0)
}
