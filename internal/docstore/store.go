// Package docstore implements the process store on Cloud Firestore.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/status"
)

// DefaultCollection holds one document per batch, keyed by batch id.
const DefaultCollection = "processes"

var _ status.Store = (*Store)(nil)

// Store is a Firestore-backed process store.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// New connects to Firestore. database may be empty for the default database.
func New(ctx context.Context, projectID, database string, logger *slog.Logger) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return NewWithClient(client, DefaultCollection, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, collection string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, collection: collection, logger: logger}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func mapError(err error) error {
	switch grpcstatus.Code(err) {
	case codes.NotFound:
		return status.ErrBatchNotFound
	case codes.AlreadyExists:
		return fmt.Errorf("batch already exists: %w", err)
	}
	return err
}

// CreateBatch writes the initial document. It fails if the id is taken.
func (s *Store) CreateBatch(ctx context.Context, batch models.Batch) error {
	if batch.Items == nil {
		batch.Items = []models.ItemRecord{}
	}
	if _, err := s.doc(batch.ID).Create(ctx, batch); err != nil {
		return fmt.Errorf("create batch: %w", mapError(err))
	}
	return nil
}

// UpdateStatus overwrites status.message.
func (s *Store) UpdateStatus(ctx context.Context, id, message string) error {
	_, err := s.doc(id).Update(ctx, []firestore.Update{
		{Path: "status.message", Value: message},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// SetItemResolvedName patches matching items inside a transaction so
// concurrent writers to the same batch are serialized by Firestore.
func (s *Store) SetItemResolvedName(ctx context.Context, id, originalName, resolvedName string) error {
	ref := s.doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var batch models.Batch
		if err := snap.DataTo(&batch); err != nil {
			return fmt.Errorf("decode batch: %w", err)
		}

		changed := false
		for i := range batch.Items {
			if batch.Items[i].OriginalName == originalName {
				batch.Items[i].ResolvedName = resolvedName
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "files", Value: batch.Items},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// FinishBatch marks the batch completed.
func (s *Store) FinishBatch(ctx context.Context, id string) error {
	_, err := s.doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.BatchStatus{Kind: models.BatchCompleted}},
		{Path: "finished_at", Value: firestore.ServerTimestamp},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetBatch reads one batch.
func (s *Store) GetBatch(ctx context.Context, id string) (models.Batch, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		return models.Batch{}, mapError(err)
	}
	var batch models.Batch
	if err := snap.DataTo(&batch); err != nil {
		return models.Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	batch.ID = snap.Ref.ID
	return batch, nil
}

// ListRecent returns the owner's newest batches first. Requires the
// composite index (user_id ASC, created_at DESC).
func (s *Store) ListRecent(ctx context.Context, owner string, limit int) ([]models.Batch, error) {
	if limit <= 0 {
		limit = 5
	}
	it := s.client.Collection(s.collection).
		Where("user_id", "==", owner).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer it.Stop()

	batches := []models.Batch{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list recent batches: %w", err)
		}
		var batch models.Batch
		if err := snap.DataTo(&batch); err != nil {
			s.logger.Warn("skipping undecodable batch", "batch_id", snap.Ref.ID, "error", err)
			continue
		}
		batch.ID = snap.Ref.ID
		batches = append(batches, batch)
	}
	return batches, nil
}
