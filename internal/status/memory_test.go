package status

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	batch := models.NewBatch("b1", "alice", []string{"a.txt", "b.txt", "a.txt"}, time.Now())
	require.NoError(t, s.CreateBatch(ctx, batch))
	assert.Error(t, s.CreateBatch(ctx, batch), "second create must fail")

	require.NoError(t, s.UpdateStatus(ctx, "b1", "Analyzing the file a.txt"))
	require.NoError(t, s.SetItemResolvedName(ctx, "b1", "a.txt", "docs/a.meta"))
	require.NoError(t, s.SetItemResolvedName(ctx, "b1", "missing.txt", "docs/x.meta"))

	got, err := s.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Analyzing the file a.txt", got.Status.Message)
	assert.Equal(t, models.BatchProcessing, got.Status.Kind)
	assert.Equal(t, "docs/a.meta", got.Items[0].ResolvedName)
	assert.Empty(t, got.Items[1].ResolvedName)
	assert.Equal(t, "docs/a.meta", got.Items[2].ResolvedName, "duplicates share the update")

	require.NoError(t, s.FinishBatch(ctx, "b1"))
	got, err = s.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Empty(t, got.Status.Message)
	assert.NotNil(t, got.FinishedAt)
}

func TestMemoryStoreUnknownBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetBatch(ctx, "nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, "nope", "x"), ErrBatchNotFound)
	assert.ErrorIs(t, s.FinishBatch(ctx, "nope"), ErrBatchNotFound)
}

func TestMemoryStoreListRecent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		b := models.NewBatch(fmt.Sprintf("b%d", i), "alice", nil, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateBatch(ctx, b))
	}
	require.NoError(t, s.CreateBatch(ctx, models.NewBatch("other", "bob", nil, base.Add(time.Hour))))

	recent, err := s.ListRecent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "b6", recent[0].ID)
	assert.Equal(t, "b2", recent[4].ID)
}

func TestMemoryStoreConcurrentItemUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	names := make([]string, 50)
	for i := range names {
		names[i] = fmt.Sprintf("f%d.txt", i)
	}
	require.NoError(t, s.CreateBatch(ctx, models.NewBatch("b", "alice", names, time.Now())))

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_ = s.SetItemResolvedName(ctx, "b", n, "docs/"+n+".meta")
		}(n)
	}
	wg.Wait()

	got, err := s.GetBatch(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Resolved())
}
