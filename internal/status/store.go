// Package status propagates batch progress to the process store.
package status

import (
	"context"
	"errors"

	"github.com/raphaelgruber/helix/internal/models"
)

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

// Store is the process store holding one record per batch.
//
// SetItemResolvedName must be atomic at the record level: concurrent calls
// for different items of the same batch may not lose each other's writes.
type Store interface {
	CreateBatch(ctx context.Context, batch models.Batch) error
	UpdateStatus(ctx context.Context, id, message string) error
	// SetItemResolvedName sets resolvedName on every item whose original name
	// matches. No match is not an error.
	SetItemResolvedName(ctx context.Context, id, originalName, resolvedName string) error
	FinishBatch(ctx context.Context, id string) error
	GetBatch(ctx context.Context, id string) (models.Batch, error)
	// ListRecent returns the owner's newest batches first.
	ListRecent(ctx context.Context, owner string, limit int) ([]models.Batch, error)
}
