package status

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raphaelgruber/helix/internal/models"
)

// MemoryStore is an in-process Store. Records are copied in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]models.Batch
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]models.Batch), now: time.Now}
}

func (s *MemoryStore) CreateBatch(_ context.Context, batch models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return fmt.Errorf("batch %s already exists", batch.ID)
	}
	s.batches[batch.ID] = batch.Clone()
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id, message string) error {
	return s.mutate(id, func(b *models.Batch) {
		b.Status.Message = message
	})
}

func (s *MemoryStore) SetItemResolvedName(_ context.Context, id, originalName, resolvedName string) error {
	return s.mutate(id, func(b *models.Batch) {
		for i := range b.Items {
			if b.Items[i].OriginalName == originalName {
				b.Items[i].ResolvedName = resolvedName
			}
		}
	})
}

func (s *MemoryStore) FinishBatch(_ context.Context, id string) error {
	return s.mutate(id, func(b *models.Batch) {
		now := s.now()
		b.FinishedAt = &now
		b.Status = models.BatchStatus{Kind: models.BatchCompleted}
	})
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, ErrBatchNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) ListRecent(_ context.Context, owner string, limit int) ([]models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Batch
	for _, b := range s.batches {
		if b.Owner == owner {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) mutate(id string, fn func(*models.Batch)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	fn(&b)
	b.UpdatedAt = s.now()
	s.batches[id] = b
	return nil
}
