package placement

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/helix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogListGetDeleteOpen(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	store := NewLocalStorage(root)
	engine := NewEngine(store, nil)
	catalog := NewCatalog(store, nil)
	ctx := context.Background()

	doc, err := engine.Place(ctx, Request{
		Owner: "alice", Category: models.CategoryDocs, Kind: models.KindFile,
		OriginalName: "q3.pdf", SourcePath: stageFile(t, staging, "q3.pdf", "pdf"),
		ProposedName: "Quarterly Report", Summary: "Q3 numbers", Tags: []string{"finance", "q3", "report"},
	})
	require.NoError(t, err)
	_, err = engine.Place(ctx, Request{
		Owner: "alice", Category: models.CategoryLinks, Kind: models.KindLink,
		OriginalName: "https://go.dev", ProposedName: "Go Homepage",
	})
	require.NoError(t, err)

	// A corrupt sidecar is skipped rather than failing the listing.
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice", "processed", "links", "bad.meta"), []byte("{"), 0644))

	listing, err := catalog.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, listing[models.CategoryDocs], 1)
	require.Len(t, listing[models.CategoryLinks], 1)
	assert.Empty(t, listing[models.CategoryMedia])
	assert.Equal(t, "q3.pdf", listing[models.CategoryDocs][0].OldName)
	assert.Equal(t, doc, listing[models.CategoryDocs][0].ResolvedName)

	rec, err := catalog.Get(ctx, "alice", doc)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly_Report", rec.Name)

	r, name, err := catalog.Open(ctx, "alice", models.CategoryDocs, "Quarterly_Report")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "Quarterly_Report.pdf", name)
	assert.Equal(t, "pdf", string(data))

	_, _, err = catalog.Open(ctx, "alice", models.CategoryLinks, "Go_Homepage")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, catalog.Delete(ctx, "alice", models.CategoryDocs, "Quarterly_Report.pdf"))
	listing, err = catalog.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, listing[models.CategoryDocs])

	err = catalog.Delete(ctx, "alice", models.CategoryDocs, "Quarterly_Report")
	assert.ErrorIs(t, err, ErrNotFound)
}

// inspectingStorage runs beforeMove while the content is still the empty
// placeholder and the sidecar is already visible.
type inspectingStorage struct {
	*LocalStorage
	beforeMove func(p string)
}

func (s *inspectingStorage) MoveFrom(ctx context.Context, src, p string) error {
	s.beforeMove(p)
	return s.LocalStorage.MoveFrom(ctx, src, p)
}

func TestCatalogOpenHidesContentBeingPlaced(t *testing.T) {
	root := t.TempDir()
	store := &inspectingStorage{LocalStorage: NewLocalStorage(root)}
	catalog := NewCatalog(store, nil)
	ctx := context.Background()

	var duringMove error
	var listedDuringMove int
	store.beforeMove = func(string) {
		_, _, duringMove = catalog.Open(ctx, "bob", models.CategoryMedia, "Standup")
		listing, err := catalog.List(ctx, "bob")
		require.NoError(t, err)
		listedDuringMove = len(listing[models.CategoryMedia])
	}

	_, err := NewEngine(store, nil).Place(ctx, Request{
		Owner: "bob", Category: models.CategoryMedia, Kind: models.KindFile,
		OriginalName: "rec.mp3", SourcePath: stageFile(t, t.TempDir(), "rec.mp3", "audio"),
		ProposedName: "Standup",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, duringMove, ErrNotFound)
	assert.Equal(t, 1, listedDuringMove)

	r, name, err := catalog.Open(ctx, "bob", models.CategoryMedia, "Standup")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "Standup.mp3", name)
	assert.Equal(t, "audio", string(data))
}

func TestCatalogOpenStaleEmptyContent(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bob", "processed", "docs")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.meta"), []byte(`{"name":"empty"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0644))

	catalog := NewCatalog(NewLocalStorage(root), nil)
	_, _, err := catalog.Open(context.Background(), "bob", models.CategoryDocs, "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	// An empty file whose sidecar is old enough is genuinely empty.
	catalog.now = func() time.Time { return time.Now().Add(placingWindow + time.Second) }
	r, name, err := catalog.Open(context.Background(), "bob", models.CategoryDocs, "empty")
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "empty.txt", name)
}

func TestParseResolvedName(t *testing.T) {
	cat, base, err := ParseResolvedName("media/talk-2.meta")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryMedia, cat)
	assert.Equal(t, "talk-2", base)

	_, _, err = ParseResolvedName("other/talk.meta")
	assert.Error(t, err)
	_, _, err = ParseResolvedName("docs/talk.pdf")
	assert.Error(t, err)
}
