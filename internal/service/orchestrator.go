// Package service runs ingestion batches: every item is extracted,
// classified and placed in turn, with progress written to the process store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/raphaelgruber/helix/internal/llm"
	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/placement"
)

// Pipeline stages an item can fail in.
const (
	StageExtract  = "extract"
	StageClassify = "classify"
	StagePlace    = "place"
)

// StageError records the stage an item failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Extractor turns an item into text.
type Extractor interface {
	Extract(ctx context.Context, item models.Item) (string, error)
}

// Classifier proposes name, summary and tags for text.
type Classifier interface {
	Classify(ctx context.Context, text string) (llm.Classification, error)
}

// Placer writes a classified item into the processed store.
type Placer interface {
	Place(ctx context.Context, req placement.Request) (string, error)
}

// StatusSink receives batch progress. Implementations must not fail the
// caller; *status.Propagator retries and drops.
type StatusSink interface {
	UpdateStatus(ctx context.Context, id, message string)
	SetItemResolvedName(ctx context.Context, id, originalName, resolvedName string)
	FinishBatch(ctx context.Context, id string)
}

// ItemResult is the outcome of one item.
type ItemResult struct {
	// Index is 1-based submission position.
	Index        int
	OriginalName string
	State        models.ItemState
	Stage        string
	ResolvedName string
	Err          error
}

// BatchOutcome collects the item results of a finished batch.
type BatchOutcome struct {
	BatchID string
	Results []ItemResult
}

// Succeeded counts items that reached done.
func (o BatchOutcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.State == models.ItemDone {
			n++
		}
	}
	return n
}

// Failed counts items that failed.
func (o BatchOutcome) Failed() int {
	return len(o.Results) - o.Succeeded()
}

// Orchestrator drives batches through the pipeline.
type Orchestrator struct {
	extractor  Extractor
	classifier Classifier
	placer     Placer
	status     StatusSink
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline. m may be nil.
func NewOrchestrator(ext Extractor, cls Classifier, plc Placer, st StatusSink, m *metrics.Collector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		extractor:  ext,
		classifier: cls,
		placer:     plc,
		status:     st,
		metrics:    m,
		logger:     logger,
	}
}

// ProcessBatch handles items sequentially in submission order. A failing
// item is logged and skipped; the batch is finished exactly once after the
// last item, whatever the individual outcomes.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batchID, owner string, items []models.Item) (outcome BatchOutcome) {
	start := time.Now()
	o.logger.Info("batch processing started", "batch_id", batchID, "items", len(items))

	finished := false
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("batch processing panicked", "batch_id", batchID, "panic", r)
			if !finished {
				o.status.FinishBatch(ctx, batchID)
			}
		}
	}()

	outcome = BatchOutcome{BatchID: batchID, Results: make([]ItemResult, 0, len(items))}
	for i, item := range items {
		outcome.Results = append(outcome.Results, o.processItem(ctx, batchID, owner, i+1, item))
	}

	finished = true
	o.status.FinishBatch(ctx, batchID)
	o.cleanupStaged(items, outcome.Results)
	if o.metrics != nil {
		o.metrics.RecordBatchCompleted()
	}

	o.logger.Info("batch processing completed",
		"batch_id", batchID,
		"succeeded", outcome.Succeeded(),
		"failed", outcome.Failed(),
		"duration_ms", time.Since(start).Milliseconds())
	return outcome
}

func statusMessage(item models.Item) string {
	if item.Kind == models.KindLink {
		return "Fetching and analyzing the URL " + item.OriginalName
	}
	return "Analyzing the file " + item.OriginalName
}

func (o *Orchestrator) processItem(ctx context.Context, batchID, owner string, index int, item models.Item) (result ItemResult) {
	result = ItemResult{Index: index, OriginalName: item.OriginalName, State: models.ItemPending}
	log := o.logger.With("batch_id", batchID, "item", item.OriginalName, "index", index)

	stage := StageExtract
	defer func() {
		if r := recover(); r != nil {
			result.Err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
		if result.Err != nil {
			result.State = models.ItemFailed
			result.Stage = stage
			result.ResolvedName = ""
			if o.metrics != nil {
				o.metrics.RecordItemFailed(stage)
			}
			log.Error("item processing failed", "stage", stage, "error", result.Err)
		}
	}()

	o.status.UpdateStatus(ctx, batchID, statusMessage(item))

	result.State = models.ItemExtracting
	t := time.Now()
	text, err := o.extractor.Extract(ctx, item)
	o.recordTiming(metrics.OpExtract, t)
	if err != nil {
		result.Err = &StageError{Stage: stage, Err: err}
		return result
	}
	text = models.Truncate(text, llm.MaxInputChars)

	stage = StageClassify
	result.State = models.ItemClassifying
	cls, err := o.classifier.Classify(ctx, text)
	if err != nil {
		result.Err = &StageError{Stage: stage, Err: err}
		return result
	}

	stage = StagePlace
	result.State = models.ItemPlacing
	t = time.Now()
	resolved, err := o.placer.Place(ctx, placement.Request{
		Owner:        owner,
		Category:     item.Category(),
		Kind:         item.Kind,
		OriginalName: item.OriginalName,
		SourcePath:   item.StagedPath,
		ProposedName: cls.Name,
		Summary:      cls.Summary,
		Tags:         cls.Tags,
	})
	o.recordTiming(metrics.OpPlace, t)
	if err != nil {
		result.Err = &StageError{Stage: stage, Err: err}
		return result
	}

	o.status.SetItemResolvedName(ctx, batchID, item.OriginalName, resolved)

	result.State = models.ItemDone
	result.ResolvedName = resolved
	if o.metrics != nil {
		o.metrics.RecordItemSucceeded()
	}
	log.Info("item processed", "resolved_name", resolved)
	return result
}

func (o *Orchestrator) recordTiming(op string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordTiming(op, time.Since(start))
	}
}

// cleanupStaged removes the staged uploads of failed items. Placed items
// were moved out of staging already.
func (o *Orchestrator) cleanupStaged(items []models.Item, results []ItemResult) {
	for i, item := range items {
		if item.StagedPath == "" || results[i].State == models.ItemDone {
			continue
		}
		if err := os.Remove(item.StagedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("failed to remove staged file", "path", item.StagedPath, "error", err)
		}
	}
}
