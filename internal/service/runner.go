package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/placement"
)

// ErrNoItems is returned when a batch is submitted without items.
var ErrNoItems = errors.New("batch has no items")

// BatchCreator persists the initial batch record.
type BatchCreator interface {
	CreateBatch(ctx context.Context, id, owner string, originalNames []string) (models.Batch, error)
}

// Upload is one file received from a client.
type Upload struct {
	Name    string
	Content io.Reader
}

// RunningBatch describes a batch currently held by the runner.
type RunningBatch struct {
	ID        string
	Owner     string
	Items     int
	StartedAt time.Time
}

// BatchRunner accepts batches, records them and processes them in the
// background. At most concurrency batches run at once; the rest wait for a
// slot. Running batches are not cancelled by the submitting request.
type BatchRunner struct {
	orchestrator *Orchestrator
	creator      BatchCreator
	staging      *Staging
	metrics      *metrics.Collector
	logger       *slog.Logger

	sem         *semaphore.Weighted
	concurrency int
	wg          sync.WaitGroup

	mu     sync.RWMutex
	active map[string]RunningBatch
}

// NewBatchRunner creates a runner. staging may be nil when only links are
// submitted; m may be nil.
func NewBatchRunner(o *Orchestrator, creator BatchCreator, staging *Staging, concurrency int, m *metrics.Collector, logger *slog.Logger) *BatchRunner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		orchestrator: o,
		creator:      creator,
		staging:      staging,
		metrics:      m,
		logger:       logger,
		sem:          semaphore.NewWeighted(int64(concurrency)),
		concurrency:  concurrency,
		active:       make(map[string]RunningBatch),
	}
}

// Concurrency returns the configured number of parallel batches.
func (r *BatchRunner) Concurrency() int {
	return r.concurrency
}

// StartBatch creates the batch record and schedules processing. The record
// exists when StartBatch returns; a store error fails the call and nothing
// is scheduled.
func (r *BatchRunner) StartBatch(ctx context.Context, owner string, items []models.Item) (models.Batch, error) {
	return r.start(ctx, models.NewBatchID(), owner, items)
}

// StartLinks submits one link item per URL.
func (r *BatchRunner) StartLinks(ctx context.Context, owner string, urls []string) (models.Batch, error) {
	items := make([]models.Item, len(urls))
	for i, u := range urls {
		items[i] = models.LinkItem(u)
	}
	return r.StartBatch(ctx, owner, items)
}

// StartUploads stages the uploads and submits them as file items.
func (r *BatchRunner) StartUploads(ctx context.Context, owner string, uploads []Upload) (models.Batch, error) {
	if r.staging == nil {
		return models.Batch{}, errors.New("uploads are not enabled")
	}
	if len(uploads) == 0 {
		return models.Batch{}, ErrNoItems
	}
	if err := ValidateOwner(owner); err != nil {
		return models.Batch{}, err
	}
	for _, up := range uploads {
		if placement.Reserved(up.Name) {
			return models.Batch{}, fmt.Errorf("%w: %s", placement.ErrReservedExtension, up.Name)
		}
	}

	id := models.NewBatchID()
	items := make([]models.Item, 0, len(uploads))
	for i, up := range uploads {
		p, err := r.staging.Stage(owner, id, i+1, up.Name, up.Content)
		if err != nil {
			r.cleanup(owner, id)
			return models.Batch{}, err
		}
		items = append(items, models.FileItem(up.Name, p))
	}

	batch, err := r.start(ctx, id, owner, items)
	if err != nil {
		r.cleanup(owner, id)
	}
	return batch, err
}

func (r *BatchRunner) start(ctx context.Context, id, owner string, items []models.Item) (models.Batch, error) {
	if len(items) == 0 {
		return models.Batch{}, ErrNoItems
	}
	if err := ValidateOwner(owner); err != nil {
		return models.Batch{}, err
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.OriginalName
	}
	batch, err := r.creator.CreateBatch(ctx, id, owner, names)
	if err != nil {
		return models.Batch{}, err
	}

	r.mu.Lock()
	r.active[id] = RunningBatch{ID: id, Owner: owner, Items: len(items), StartedAt: time.Now()}
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RecordBatchStarted()
	}

	r.wg.Add(1)
	go r.run(id, owner, items)

	r.logger.Info("batch scheduled", "batch_id", id, "owner", owner, "items", len(items))
	return batch, nil
}

func (r *BatchRunner) run(id, owner string, items []models.Item) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.active, id)
		r.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("batch goroutine panicked", "batch_id", id, "panic", p)
		}
	}()

	ctx := context.Background()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.logger.Error("failed to acquire batch slot", "batch_id", id, "error", err)
		return
	}
	defer r.sem.Release(1)

	r.orchestrator.ProcessBatch(ctx, id, owner, items)
	r.cleanup(owner, id)
}

func (r *BatchRunner) cleanup(owner, id string) {
	if r.staging == nil {
		return
	}
	if err := r.staging.Cleanup(owner, id); err != nil {
		r.logger.Warn("failed to clean staging dir", "batch_id", id, "error", err)
	}
}

// Active lists batches that are queued or running, oldest first.
func (r *BatchRunner) Active() []RunningBatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunningBatch, 0, len(r.active))
	for _, b := range r.active {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b RunningBatch) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// Wait blocks until every scheduled batch has finished or ctx is done.
func (r *BatchRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for batches: %w", ctx.Err())
	}
}
