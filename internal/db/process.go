package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/status"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ status.Store = (*Client)(nil)

// processRow is the stored shape of a batch.
type processRow struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserID     string                 `json:"user_id"`
	Files      []models.ItemRecord    `json:"files"`
	Status     models.BatchStatus     `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

func (r processRow) batch() (models.Batch, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Batch{}, err
	}
	files := r.Files
	if files == nil {
		files = []models.ItemRecord{}
	}
	return models.Batch{
		ID:         id,
		Owner:      r.UserID,
		Items:      files,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		FinishedAt: r.FinishedAt,
		Status:     r.Status,
	}, nil
}

func itemMaps(items []models.ItemRecord) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{"old_name": it.OriginalName, "new_name": it.ResolvedName}
	}
	return out
}

// CreateBatch inserts the batch record. Timestamps are assigned by the database.
func (c *Client) CreateBatch(ctx context.Context, batch models.Batch) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("process", $id) CONTENT {
			user_id: $owner,
			files: $files,
			status: { type: $kind, message: $message },
			created_at: time::now(),
			updated_at: time::now()
		}
	`, map[string]any{
		"id":      batch.ID,
		"owner":   batch.Owner,
		"files":   itemMaps(batch.Items),
		"kind":    string(batch.Status.Kind),
		"message": batch.Status.Message,
	})
	if err != nil {
		return fmt.Errorf("create batch: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateStatus overwrites status.message and bumps updated_at.
func (c *Client) UpdateStatus(ctx context.Context, id, message string) error {
	return c.update(ctx, "update status", `
		UPDATE type::record("process", $id) SET
			status.message = $message,
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "message": message})
}

// SetItemResolvedName rewrites the matching entries of files in a single
// statement, so concurrent updates of one batch can't lose each other.
func (c *Client) SetItemResolvedName(ctx context.Context, id, originalName, resolvedName string) error {
	return c.update(ctx, "set item resolved name", `
		UPDATE type::record("process", $id) SET
			files = files.map(|$f| IF $f.old_name = $old THEN { old_name: $f.old_name, new_name: $new } ELSE $f END),
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "old": originalName, "new": resolvedName})
}

// FinishBatch marks the batch completed and clears its message.
func (c *Client) FinishBatch(ctx context.Context, id string) error {
	return c.update(ctx, "finish batch", `
		UPDATE type::record("process", $id) SET
			status = { type: "completed", message: "" },
			finished_at = time::now(),
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id})
}

func (c *Client) update(ctx context.Context, op, sql string, vars map[string]any) error {
	results, err := surrealdb.Query[[]processRow](ctx, c.db, sql, vars)
	if err != nil {
		return fmt.Errorf("%s: %w", op, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return status.ErrBatchNotFound
	}
	return nil
}

// GetBatch loads one batch by id.
func (c *Client) GetBatch(ctx context.Context, id string) (models.Batch, error) {
	results, err := surrealdb.Query[[]processRow](ctx, c.db, `
		SELECT * FROM type::record("process", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return models.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.Batch{}, status.ErrBatchNotFound
	}
	return (*results)[0].Result[0].batch()
}

// ListRecent returns the owner's newest batches first.
func (c *Client) ListRecent(ctx context.Context, owner string, limit int) ([]models.Batch, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := surrealdb.Query[[]processRow](ctx, c.db, `
		SELECT * FROM process WHERE user_id = $owner ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"owner": owner, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list recent batches: %w", err)
	}

	batches := []models.Batch{}
	if results == nil || len(*results) == 0 {
		return batches, nil
	}
	for _, row := range (*results)[0].Result {
		b, err := row.batch()
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}
