package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/placement"
	"github.com/raphaelgruber/helix/internal/status"
)

type failingCreator struct{}

func (failingCreator) CreateBatch(context.Context, string, string, []string) (models.Batch, error) {
	return models.Batch{}, errors.New("store down")
}

// blockingExtractor holds every item until release is closed.
type blockingExtractor struct {
	release chan struct{}
	mu      sync.Mutex
	running int
	peak    int
}

func (b *blockingExtractor) Extract(_ context.Context, item models.Item) (string, error) {
	b.mu.Lock()
	b.running++
	b.peak = max(b.peak, b.running)
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.running--
	b.mu.Unlock()
	return "text " + item.OriginalName, nil
}

func newTestRunner(t *testing.T, ext Extractor, concurrency int) (*BatchRunner, *status.MemoryStore, testEnv, *Staging) {
	t.Helper()
	env := newTestEnv(t)
	store := status.NewMemoryStore()
	prop := status.NewPropagator(store, nil, env.metrics)
	staging := NewStaging(t.TempDir())
	o := NewOrchestrator(ext, &fakeClassifier{name: "note"}, env.engine, prop, env.metrics, nil)
	return NewBatchRunner(o, prop, staging, concurrency, env.metrics, nil), store, env, staging
}

func waitFor(t *testing.T, r *BatchRunner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestBatchRunner_StartLinks(t *testing.T) {
	r, store, env, _ := newTestRunner(t, &fakeExtractor{}, 2)
	ctx := context.Background()

	batch, err := r.StartLinks(ctx, "alice", []string{"https://example.com/a", "https://example.com/b"})
	require.NoError(t, err)
	assert.Len(t, batch.ID, 32)
	assert.Equal(t, models.BatchProcessing, batch.Status.Kind)
	assert.Equal(t, "https://example.com/a", batch.Items[0].OriginalName)

	waitFor(t, r)

	got, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, "links/note.meta", got.Items[0].ResolvedName)
	assert.Equal(t, "links/note-1.meta", got.Items[1].ResolvedName)
	assert.Empty(t, r.Active())
	assert.Equal(t, int64(1), env.metrics.Snapshot().BatchesStarted)
}

func TestBatchRunner_StartUploadsStagesAndCleansUp(t *testing.T) {
	r, store, env, staging := newTestRunner(t, &fakeExtractor{}, 1)
	ctx := context.Background()

	batch, err := r.StartUploads(ctx, "alice", []Upload{
		{Name: "notes.txt", Content: strings.NewReader("first")},
		{Name: "notes.txt", Content: strings.NewReader("second")},
	})
	require.NoError(t, err)
	waitFor(t, r)

	got, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	// Items sharing an original name all carry the last resolved name.
	assert.Equal(t, "docs/note-1.meta", got.Items[0].ResolvedName)
	assert.Equal(t, "docs/note-1.meta", got.Items[1].ResolvedName)

	second, err := os.ReadFile(filepath.Join(env.root, "alice", "processed", "docs", "note-1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))

	_, err = os.Stat(staging.Dir("alice", batch.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestBatchRunner_CreateFailureSchedulesNothing(t *testing.T) {
	env := newTestEnv(t)
	staging := NewStaging(t.TempDir())
	o := NewOrchestrator(&fakeExtractor{}, &fakeClassifier{}, env.engine, &recordingSink{}, nil, nil)
	r := NewBatchRunner(o, failingCreator{}, staging, 1, nil, nil)

	_, err := r.StartUploads(context.Background(), "alice", []Upload{{Name: "a.txt", Content: strings.NewReader("x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
	assert.Empty(t, r.Active())

	entries, err := os.ReadDir(filepath.Join(staging.root, "alice", "processing"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchRunner_RejectsBadInput(t *testing.T) {
	r, _, _, _ := newTestRunner(t, &fakeExtractor{}, 1)
	ctx := context.Background()

	_, err := r.StartLinks(ctx, "alice", nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = r.StartLinks(ctx, "../etc", []string{"https://example.com"})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestBatchRunner_RejectsSidecarUploads(t *testing.T) {
	env := newTestEnv(t)
	store := status.NewMemoryStore()
	classifier := &fakeClassifier{name: "note"}
	staging := NewStaging(t.TempDir())
	prop := status.NewPropagator(store, nil, env.metrics)
	o := NewOrchestrator(&fakeExtractor{}, classifier, env.engine, prop, env.metrics, nil)
	r := NewBatchRunner(o, prop, staging, 1, env.metrics, nil)

	_, err := r.StartUploads(context.Background(), "alice", []Upload{
		{Name: "notes.txt", Content: strings.NewReader("fine")},
		{Name: "report.META", Content: strings.NewReader(`{"name":"x"}`)},
	})
	require.ErrorIs(t, err, placement.ErrReservedExtension)
	assert.Contains(t, err.Error(), "report.META")

	waitFor(t, r)
	assert.Empty(t, classifier.inputs)
	assert.Empty(t, r.Active())
	_, err = os.Stat(filepath.Join(staging.root, "alice"))
	assert.True(t, os.IsNotExist(err), "nothing may be staged")
	recent, err := store.ListRecent(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestBatchRunner_BoundsConcurrentBatches(t *testing.T) {
	ext := &blockingExtractor{release: make(chan struct{})}
	r, _, _, _ := newTestRunner(t, ext, 2)
	ctx := context.Background()

	for i := range 4 {
		_, err := r.StartLinks(ctx, "alice", []string{"https://example.com/" + string(rune('a'+i))})
		require.NoError(t, err)
	}
	assert.Len(t, r.Active(), 4)

	require.Eventually(t, func() bool {
		ext.mu.Lock()
		defer ext.mu.Unlock()
		return ext.running == 2
	}, time.Second, 10*time.Millisecond)

	close(ext.release)
	waitFor(t, r)

	assert.Equal(t, 2, ext.peak)
	assert.Empty(t, r.Active())
}

func TestValidateOwner(t *testing.T) {
	tests := []struct {
		owner string
		ok    bool
	}{
		{"alice", true},
		{"user_42@example.com", true},
		{"", false},
		{"..", false},
		{"a/b", false},
		{"-flag", false},
	}
	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			err := ValidateOwner(tt.owner)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidOwner)
			}
		})
	}
}
