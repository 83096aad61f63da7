package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
)

// Propagator is the orchestrator's narrow view of the process store.
//
// Creating a batch is synchronous and its error reaches the caller. The
// progress updates issued from background work are best effort: each gets
// one immediate retry, after which the failure is logged and dropped so
// item processing continues.
type Propagator struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewPropagator wraps store. metrics may be nil.
func NewPropagator(store Store, logger *slog.Logger, m *metrics.Collector) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{store: store, logger: logger, metrics: m, now: time.Now}
}

// CreateBatch persists the initial record for a new batch.
func (p *Propagator) CreateBatch(ctx context.Context, id, owner string, originalNames []string) (models.Batch, error) {
	batch := models.NewBatch(id, owner, originalNames, p.now().UTC())
	if err := p.store.CreateBatch(ctx, batch); err != nil {
		return models.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	p.logger.Info("batch created", "batch_id", id, "owner", owner, "items", len(originalNames))
	return batch, nil
}

// UpdateStatus overwrites the batch's progress message.
func (p *Propagator) UpdateStatus(ctx context.Context, id, message string) {
	p.try(ctx, "update_status", id, func(ctx context.Context) error {
		return p.store.UpdateStatus(ctx, id, message)
	})
}

// SetItemResolvedName records where an item was placed.
func (p *Propagator) SetItemResolvedName(ctx context.Context, id, originalName, resolvedName string) {
	p.try(ctx, "set_resolved_name", id, func(ctx context.Context) error {
		return p.store.SetItemResolvedName(ctx, id, originalName, resolvedName)
	})
}

// FinishBatch marks the batch completed.
func (p *Propagator) FinishBatch(ctx context.Context, id string) {
	p.try(ctx, "finish_batch", id, func(ctx context.Context) error {
		return p.store.FinishBatch(ctx, id)
	})
}

// try runs fn, retries once on failure, then gives up with a log line.
func (p *Propagator) try(ctx context.Context, op, id string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		p.logger.Debug("store update failed, retrying", "op", op, "batch_id", id, "error", err)
		err = fn(ctx)
	}
	if p.metrics != nil {
		p.metrics.RecordTiming(metrics.OpStoreUpdate, time.Since(start))
		if err != nil {
			p.metrics.RecordStoreFailure()
		}
	}
	if err != nil {
		p.logger.Warn("dropping store update", "op", op, "batch_id", id, "error", err)
	}
}
