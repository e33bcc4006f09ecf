package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/storage"
	"github.com/aryankumar/lomsync/internal/util"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, cfg executor.Config) *executor.Pool {
	t.Helper()
	pool, err := executor.NewPool(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(func() {
		if !pool.IsShutdown() {
			pool.Shutdown(2 * time.Second)
		}
	})
	return pool
}

func defaultTestPool(t *testing.T) *executor.Pool {
	return newTestPool(t, executor.Config{MinWorkers: 2, MaxWorkers: 8, QueueCapacity: 32})
}

func newTestImporter(t *testing.T, pool *executor.Pool, creator Creator) *Importer {
	t.Helper()
	n := 0
	im, err := NewImporter(pool, creator, testLogger(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}))
	if err != nil {
		t.Fatalf("NewImporter failed: %v", err)
	}
	return im
}

func makeItems(n int) []catalog.Item {
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{
			Title:   fmt.Sprintf("item-%d", i+1),
			Locator: fmt.Sprintf("https://example.org/%d", i+1),
		}
	}
	return items
}

// recordingObserver captures callbacks for assertions
type recordingObserver struct {
	mu        sync.Mutex
	progress  []int
	errLabels []string
	completed [][2]int
}

func (r *recordingObserver) OnProgress(current, total int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingObserver) OnComplete(success, failure int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, [2]int{success, failure})
}

func (r *recordingObserver) OnError(label string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errLabels = append(r.errLabels, label)
}

func TestNewImporter(t *testing.T) {
	pool := defaultTestPool(t)
	repo := storage.NewMemory()

	if _, err := NewImporter(nil, repo, nil); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("nil pool: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewImporter(pool, nil, nil); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("nil creator: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewImporter(pool, repo, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestImportBatch_OneItemFails(t *testing.T) {
	repo := storage.NewMemory()
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		if item.Title == "item-3" {
			return nil, errors.New("duplicate locator")
		}
		return repo.Create(ctx, item)
	})
	im := newTestImporter(t, defaultTestPool(t), creator)
	obs := &recordingObserver{}

	result, err := im.ImportBatch(context.Background(), makeItems(5), time.Second, obs)
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.SuccessCount != 4 || result.FailureCount != 1 {
		t.Errorf("expected 4 succeeded and 1 failed, got %d and %d", result.SuccessCount, result.FailureCount)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
	f := result.Failures[0]
	if f.Item.Title != "item-3" || f.Reason != "duplicate locator" || f.Kind != "failure" {
		t.Errorf("unexpected failure %+v", f)
	}
	var taskErr *util.TaskError
	if !errors.As(f.Err, &taskErr) || taskErr.Label != "item-3" {
		t.Errorf("expected TaskError attributed to item-3, got %v", f.Err)
	}

	if !result.Complete || result.ID != "batch-1" || result.Mode != ModeOrdered {
		t.Errorf("unexpected batch metadata %+v", result)
	}
	for i, o := range result.Outcomes {
		if o.Item.Title != fmt.Sprintf("item-%d", i+1) {
			t.Errorf("outcome %d reported out of input order: %s", i, o.Item.Title)
		}
	}
	for _, r := range result.Succeeded {
		if r == nil || r.ID == 0 {
			t.Errorf("expected created resource, got %+v", r)
		}
	}

	if len(obs.progress) != 5 || obs.progress[4] != 5 {
		t.Errorf("expected progress 1..5, got %v", obs.progress)
	}
	if len(obs.errLabels) != 1 || obs.errLabels[0] != "item-3" {
		t.Errorf("expected one error for item-3, got %v", obs.errLabels)
	}
	if len(obs.completed) != 1 || obs.completed[0] != [2]int{4, 1} {
		t.Errorf("expected OnComplete(4, 1) once, got %v", obs.completed)
	}
}

func TestImportBatch_AllTimeOut(t *testing.T) {
	var cancelledSeen atomic.Int32
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return &catalog.Resource{ID: 1, Title: item.Title}, nil
		case <-ctx.Done():
			cancelledSeen.Add(1)
			return nil, ctx.Err()
		}
	})
	im := newTestImporter(t, newTestPool(t, executor.Config{MinWorkers: 3, MaxWorkers: 3, QueueCapacity: 3}), creator)

	start := time.Now()
	result, err := im.ImportBatch(context.Background(), makeItems(3), 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.SuccessCount != 0 || result.FailureCount != 3 {
		t.Errorf("expected 0 succeeded and 3 failed, got %d and %d", result.SuccessCount, result.FailureCount)
	}
	if result.Count(OutcomeTimedOut) != 3 {
		t.Errorf("expected 3 timed out outcomes, got %d", result.Count(OutcomeTimedOut))
	}
	for _, f := range result.Failures {
		if f.Reason != ReasonTimeout || !util.IsTimeout(f.Err) {
			t.Errorf("expected timeout failure, got %+v", f)
		}
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Errorf("batch waited for slow tasks, took %s", time.Since(start))
	}

	// Timed-out handles are cancelled, so their tasks see ctx.Done
	deadline := time.Now().Add(time.Second)
	for cancelledSeen.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cancelledSeen.Load() != 3 {
		t.Errorf("expected 3 tasks to observe cancellation, got %d", cancelledSeen.Load())
	}
}

func TestImportBatch_ContextCancelled(t *testing.T) {
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	im := newTestImporter(t, defaultTestPool(t), creator)
	obs := &recordingObserver{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	result, err := im.ImportBatch(ctx, makeItems(4), 5*time.Second, obs)
	if !util.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result alongside the error")
	}
	if result.Complete {
		t.Error("interrupted batch must not be complete")
	}
	if result.Count(OutcomeCancelled) != 4 {
		t.Errorf("expected 4 cancelled outcomes, got %d", result.Count(OutcomeCancelled))
	}
	if result.SuccessCount+result.FailureCount != 4 {
		t.Errorf("outcome accounting broken: %d + %d != 4", result.SuccessCount, result.FailureCount)
	}
	if len(obs.completed) != 1 || obs.completed[0] != [2]int{0, 4} {
		t.Errorf("expected OnComplete(0, 4), got %v", obs.completed)
	}
}

func TestImportBatch_AlreadyCancelledContext(t *testing.T) {
	var calls atomic.Int32
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		calls.Add(1)
		return &catalog.Resource{ID: 1}, nil
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := im.ImportBatch(ctx, makeItems(3), time.Second, nil)
	if !util.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if result.Count(OutcomeCancelled) != 3 {
		t.Errorf("expected every item cancelled, got %d", result.Count(OutcomeCancelled))
	}
	if calls.Load() != 0 {
		t.Errorf("no item should be submitted after cancellation, %d ran", calls.Load())
	}
}

func TestImportBatch_PoolShutDown(t *testing.T) {
	pool := defaultTestPool(t)
	pool.Shutdown(time.Second)
	im := newTestImporter(t, pool, storage.NewMemory())

	result, err := im.ImportBatch(context.Background(), makeItems(2), time.Second, nil)
	if err != nil {
		t.Fatalf("rejections are per-item failures, got batch error %v", err)
	}
	if result.FailureCount != 2 {
		t.Fatalf("expected 2 failures, got %d", result.FailureCount)
	}
	for _, f := range result.Failures {
		if !errors.Is(f.Err, util.ErrShutdown) {
			t.Errorf("expected ErrShutdown, got %v", f.Err)
		}
	}
}

func TestImportBatch_InvalidItem(t *testing.T) {
	im := newTestImporter(t, defaultTestPool(t), storage.NewMemory())

	items := []catalog.Item{{Title: "ok", Locator: "a"}, {Title: "   ", Locator: "b"}}
	result, err := im.ImportBatch(context.Background(), items, time.Second, nil)
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("expected 1/1, got %d/%d", result.SuccessCount, result.FailureCount)
	}
	if !errors.Is(result.Failures[0].Err, util.ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", result.Failures[0].Err)
	}
}

func TestImportBatch_PanicIsAFailure(t *testing.T) {
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		if item.Title == "item-2" {
			panic("nil map")
		}
		return &catalog.Resource{ID: 1, Title: item.Title}, nil
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	result, err := im.ImportBatch(context.Background(), makeItems(3), time.Second, nil)
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}
	if result.SuccessCount != 2 || result.FailureCount != 1 {
		t.Fatalf("expected 2/1, got %d/%d", result.SuccessCount, result.FailureCount)
	}
	if !errors.Is(result.Failures[0].Err, util.ErrTaskPanic) {
		t.Errorf("expected ErrTaskPanic, got %v", result.Failures[0].Err)
	}
}

func TestImportBatch_CountsAlwaysSumToTotal(t *testing.T) {
	tests := []struct {
		name string
		n    int
		pool executor.Config
	}{
		{name: "empty", n: 0, pool: executor.Config{MinWorkers: 1, MaxWorkers: 1}},
		{name: "single worker no queue", n: 7, pool: executor.Config{MinWorkers: 1, MaxWorkers: 1}},
		{name: "elastic", n: 25, pool: executor.Config{MinWorkers: 2, MaxWorkers: 6, QueueCapacity: 4}},
		{name: "abort policy", n: 25, pool: executor.Config{MinWorkers: 1, MaxWorkers: 2, QueueCapacity: 1, Rejection: executor.RejectAbort}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
				var n int
				fmt.Sscanf(item.Title, "item-%d", &n)
				switch n % 3 {
				case 0:
					return nil, errors.New("rejected by repository")
				case 1:
					select {
					case <-time.After(80 * time.Millisecond):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
				return &catalog.Resource{ID: int64(n), Title: item.Title}, nil
			})
			im := newTestImporter(t, newTestPool(t, tt.pool), creator)

			result, err := im.ImportBatch(context.Background(), makeItems(tt.n), 30*time.Millisecond, nil)
			if err != nil {
				t.Fatalf("ImportBatch failed: %v", err)
			}
			if result.SuccessCount+result.FailureCount != tt.n {
				t.Errorf("%d + %d != %d", result.SuccessCount, result.FailureCount, tt.n)
			}
			if len(result.Outcomes) != tt.n {
				t.Errorf("expected %d outcomes, got %d", tt.n, len(result.Outcomes))
			}
		})
	}
}

func TestImportWithBarrier(t *testing.T) {
	repo := storage.NewMemory()
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		if strings.HasSuffix(item.Title, "-2") {
			return nil, errors.New("bad locator")
		}
		return repo.Create(ctx, item)
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	result, err := im.ImportWithBarrier(context.Background(), makeItems(6), 2*time.Second)
	if err != nil {
		t.Fatalf("ImportWithBarrier failed: %v", err)
	}
	if !result.Complete || result.Pending != 0 {
		t.Errorf("expected complete batch, pending %d", result.Pending)
	}
	if result.SuccessCount != 5 || result.FailureCount != 1 {
		t.Errorf("expected 5/1, got %d/%d", result.SuccessCount, result.FailureCount)
	}
	if result.Mode != ModeBarrier {
		t.Errorf("expected barrier mode, got %s", result.Mode)
	}
	if result.Failures[0].Item.Title != "item-2" {
		t.Errorf("unexpected failure %+v", result.Failures[0])
	}
}

func TestImportWithBarrier_DeadlineReturnsPartialResult(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// Slow items ignore their context so they are still running at the deadline
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		if item.Title != "item-1" {
			<-release
		}
		return &catalog.Resource{ID: 1, Title: item.Title}, nil
	})
	im := newTestImporter(t, newTestPool(t, executor.Config{MinWorkers: 3, MaxWorkers: 3, QueueCapacity: 3}), creator)

	start := time.Now()
	result, err := im.ImportWithBarrier(context.Background(), makeItems(3), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("deadline is not an error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("barrier wait overran the deadline: %s", time.Since(start))
	}
	if result.Complete {
		t.Error("expected incomplete result when items are still pending")
	}
	if result.SuccessCount != 1 || result.Pending != 2 {
		t.Errorf("expected 1 succeeded and 2 pending, got %d and %d", result.SuccessCount, result.Pending)
	}
}

func TestImportWithBarrier_ZeroDeadlineWaitsForEveryItem(t *testing.T) {
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &catalog.Resource{ID: 1, Title: item.Title}, nil
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	result, err := im.ImportWithBarrier(context.Background(), makeItems(4), 0)
	if err != nil {
		t.Fatalf("ImportWithBarrier failed: %v", err)
	}
	if !result.Complete || result.Pending != 0 {
		t.Errorf("expected complete batch without a deadline, pending %d", result.Pending)
	}
	if result.SuccessCount != 4 {
		t.Errorf("expected 4 successes, got %d (failures %+v)", result.SuccessCount, result.Failures)
	}
}

func TestImportWithBarrier_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		<-release
		return &catalog.Resource{ID: 1}, nil
	})
	im := newTestImporter(t, newTestPool(t, executor.Config{MinWorkers: 2, MaxWorkers: 2, QueueCapacity: 2}), creator)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result, err := im.ImportWithBarrier(ctx, makeItems(2), 5*time.Second)
	if !util.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if result.Pending != 2 {
		t.Errorf("expected 2 pending, got %d", result.Pending)
	}
}

func TestImportParallel(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		var id int
		fmt.Sscanf(item.Title, "item-%d", &id)
		if id%4 == 0 {
			return nil, errors.New("rejected")
		}
		return &catalog.Resource{ID: int64(id), Title: item.Title}, nil
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	created := im.ImportParallel(context.Background(), makeItems(12), 3)

	if len(created) != 9 {
		t.Fatalf("expected 9 created resources, got %d", len(created))
	}
	for i := 1; i < len(created); i++ {
		if created[i-1].ID >= created[i].ID {
			t.Errorf("results not in input order at %d", i)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("parallelism limit exceeded: %d concurrent", peak.Load())
	}
}

func TestReconcile(t *testing.T) {
	repo := storage.NewMemory()
	release := make(chan struct{})
	creator := CreatorFunc(func(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
		r, err := repo.Create(context.Background(), item)
		if item.Title == "item-2" {
			// Commits, then ignores cancellation for a while
			<-release
		}
		return r, err
	})
	im := newTestImporter(t, defaultTestPool(t), creator)

	result, err := im.ImportBatch(context.Background(), makeItems(3), 30*time.Millisecond, nil)
	close(release)
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}
	if result.Count(OutcomeTimedOut) != 1 {
		t.Fatalf("expected item-2 to time out, got %+v", result.Failures)
	}

	found, err := Reconcile(context.Background(), repo, result)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(found) != 1 || found[0].Title != "item-2" {
		t.Errorf("expected item-2 reconciled, got %+v", found)
	}
}
