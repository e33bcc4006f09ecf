package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aryankumar/lomsync/internal/executor"
)

const namespace = "lomsync"

// CounterSource supplies cache counters, typically a *cache.ResourceCache
type CounterSource interface {
	Counters() ServiceCounters
}

// PoolSource supplies worker pool statistics, typically an *executor.Pool
type PoolSource interface {
	Stats() executor.PoolStats
}

// Collector reads its sources on every scrape, so registered metrics never
// drift from the in-process counters
type Collector struct {
	cache CounterSource
	pool  PoolSource

	queries   *prometheus.Desc
	updates   *prometheus.Desc
	errors    *prometheus.Desc
	entries   *prometheus.Desc
	workers   *prometheus.Desc
	idle      *prometheus.Desc
	queued    *prometheus.Desc
	completed *prometheus.Desc
	failed    *prometheus.Desc
	rejected  *prometheus.Desc
}

// NewCollector builds a collector. pool may be nil to export cache metrics only.
func NewCollector(cache CounterSource, pool PoolSource) *Collector {
	return &Collector{
		cache: cache,
		pool:  pool,

		queries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "queries_total"),
			"Read-through requests served by the resource cache.", nil, nil),
		updates: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "updates_total"),
			"Write-through updates and deletes applied by the resource cache.", nil, nil),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "errors_total"),
			"Failed resource cache operations.", nil, nil),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Snapshots currently held by the resource cache.", nil, nil),
		workers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "workers"),
			"Live worker goroutines.", nil, nil),
		idle: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "idle_workers"),
			"Workers waiting for a task.", nil, nil),
		queued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "queued_tasks"),
			"Tasks waiting in the pool queue.", nil, nil),
		completed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "completed_total"),
			"Tasks that finished, successfully or not.", nil, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "failed_total"),
			"Tasks that finished with an error.", nil, nil),
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pool", "rejected_total"),
			"Tasks refused because the pool was saturated.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.updates
	ch <- c.errors
	ch <- c.entries
	if c.pool != nil {
		ch <- c.workers
		ch <- c.idle
		ch <- c.queued
		ch <- c.completed
		ch <- c.failed
		ch <- c.rejected
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.cache != nil {
		s := c.cache.Counters()
		ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.Queries))
		ch <- prometheus.MustNewConstMetric(c.updates, prometheus.CounterValue, float64(s.Updates))
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.CacheSize))
	}

	if c.pool != nil {
		p := c.pool.Stats()
		ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(p.Workers))
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(p.Idle))
		ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(p.Queued))
		ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(p.Completed))
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(p.Failed))
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(p.Rejected))
	}
}

// NewRegistry returns a private registry holding only the lomsync collector
func NewRegistry(cache CounterSource, pool PoolSource) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(cache, pool)); err != nil {
		return nil, err
	}
	return reg, nil
}
