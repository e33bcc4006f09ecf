package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryankumar/lomsync/internal/cache"
	"github.com/aryankumar/lomsync/internal/config"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/ingest"
	"github.com/aryankumar/lomsync/internal/stats"
	"github.com/aryankumar/lomsync/internal/storage"
	"github.com/aryankumar/lomsync/internal/util"
)

// runtime is the service graph one command works against
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	pool     *executor.Pool
	cache    *cache.ResourceCache
	importer *ingest.Importer
	metrics  *http.Server
}

// open validates configuration and wires store, pool, cache and importer
func (a *app) open(ctx context.Context) (*runtime, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return newRuntime(ctx, a.cfg, a.logger)
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &runtime{cfg: cfg, logger: logger}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	rt.store = store

	pool, err := executor.NewPool(cfg.Pool, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	rt.pool = pool

	rt.cache, err = cache.New(store,
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithLogger(logger),
		cache.WithPool(pool),
		cache.WithCounters(stats.NewCounters()),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.importer, err = ingest.NewImporter(pool, store, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		if err := rt.serveMetrics(cfg.Metrics.Addr); err != nil {
			rt.Close()
			return nil, err
		}
	}

	return rt, nil
}

// serveMetrics exposes cache counters and pool gauges until Close
func (rt *runtime) serveMetrics(addr string) error {
	registry, err := stats.NewRegistry(rt.cache, rt.pool)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	rt.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := rt.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	rt.logger.Info("serving metrics", "addr", addr, "path", "/metrics")
	return nil
}

// Close drains the pool within the grace period, then releases the store
func (rt *runtime) Close() error {
	var errs []error

	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, rt.metrics.Shutdown(ctx))
		cancel()
	}
	if rt.pool != nil && !rt.pool.IsShutdown() {
		errs = append(errs, rt.pool.Shutdown(rt.cfg.Shutdown.GracePeriod))
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}

	return util.CombineErrors(errs...)
}
