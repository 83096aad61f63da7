package tools_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix/internal/api"
	"github.com/raphaelgruber/helix/internal/client"
	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/placement"
	"github.com/raphaelgruber/helix/internal/service"
	"github.com/raphaelgruber/helix/internal/status"
	"github.com/raphaelgruber/helix/internal/tools"
)

// linkRunner records link batches and files every link under links/.
type linkRunner struct {
	store *status.MemoryStore
}

func (r *linkRunner) StartLinks(ctx context.Context, owner string, urls []string) (models.Batch, error) {
	b := models.NewBatch(models.NewBatchID(), owner, urls, time.Now())
	if err := r.store.CreateBatch(ctx, b); err != nil {
		return models.Batch{}, err
	}
	for i, u := range urls {
		if err := r.store.SetItemResolvedName(ctx, b.ID, u, filepath.Join("links", "link"+string(rune('a'+i))+".meta")); err != nil {
			return models.Batch{}, err
		}
	}
	if err := r.store.FinishBatch(ctx, b.ID); err != nil {
		return models.Batch{}, err
	}
	return b, nil
}

func (r *linkRunner) StartUploads(ctx context.Context, owner string, uploads []service.Upload) (models.Batch, error) {
	return models.Batch{}, service.ErrNoItems
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// setup serves the REST API over httptest and connects an MCP client to a
// server carrying every tool.
func setup(t *testing.T) (*mcp.ClientSession, context.Context, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	store := status.NewMemoryStore()
	srv := api.NewServer(&linkRunner{store: store}, store,
		placement.NewCatalog(placement.NewLocalStorage(root), nil), metrics.NewCollector(), nil, api.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	server := mcp.NewServer(&mcp.Implementation{Name: "test-helix", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, &tools.Dependencies{Client: client.New(ts.URL, "alice"), Logger: testLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	c := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := c.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session, ctx, root
}

func callText(t *testing.T, ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func TestRegisterAll(t *testing.T) {
	session, ctx, _ := setup(t)

	result, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.ElementsMatch(t, []string{"health", "process_urls", "get_batch", "recent_batches", "list_processed"}, names)
}

func TestHealthTool(t *testing.T) {
	session, ctx, _ := setup(t)

	text, isErr := callText(t, ctx, session, "health", map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "ok")
}

func TestProcessURLsAndGetBatch(t *testing.T) {
	session, ctx, _ := setup(t)

	text, isErr := callText(t, ctx, session, "process_urls", map[string]any{
		"urls": []string{"https://example.com/a", " ", "https://example.com/b"},
	})
	require.False(t, isErr, text)
	var started tools.ProcessURLsResult
	require.NoError(t, json.Unmarshal([]byte(text), &started))
	assert.Equal(t, 2, started.Items)
	assert.Len(t, started.ProcessID, 32)

	text, isErr = callText(t, ctx, session, "get_batch", map[string]any{"process_id": started.ProcessID})
	require.False(t, isErr, text)
	var summary tools.BatchSummary
	require.NoError(t, json.Unmarshal([]byte(text), &summary))
	assert.Equal(t, models.BatchCompleted, summary.Status)
	assert.Equal(t, 2, summary.Resolved)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, "links/linka.meta", summary.Items[0].ResolvedName)

	text, isErr = callText(t, ctx, session, "recent_batches", map[string]any{"limit": 3})
	require.False(t, isErr, text)
	assert.Contains(t, text, started.ProcessID)
	assert.Contains(t, text, `"count": 1`)
}

func TestToolErrors(t *testing.T) {
	session, ctx, _ := setup(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"no urls", "process_urls", map[string]any{"urls": []string{"  "}}, "At least one URL is required"},
		{"bad url", "process_urls", map[string]any{"urls": []string{"ftp://example.com"}}, "Submitting links: invalid url"},
		{"blank id", "get_batch", map[string]any{"process_id": " "}, "process_id is required"},
		{"unknown batch", "get_batch", map[string]any{"process_id": "missing"}, "Fetching batch: process not found"},
		{"limit too large", "recent_batches", map[string]any{"limit": 99}, "Limit must be 1-50"},
		{"unknown category", "list_processed", map[string]any{"category": "music"}, "Unknown category music"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callText(t, ctx, session, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestListProcessed(t *testing.T) {
	session, ctx, root := setup(t)

	write := func(cat, name string, rec models.MetadataRecord) {
		dir := filepath.Join(root, "alice", "processed", cat)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".meta"), data, 0o644))
	}
	write("docs", "invoice", models.MetadataRecord{OldName: "scan.pdf", Name: "invoice", Tags: []string{"finance"}})
	write("links", "recipe", models.MetadataRecord{OldName: "https://example.com/r", Name: "recipe", Tags: []string{"food"}})

	text, isErr := callText(t, ctx, session, "list_processed", map[string]any{})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"count": 2`)

	text, isErr = callText(t, ctx, session, "list_processed", map[string]any{"category": "links"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "recipe")
	assert.NotContains(t, text, "invoice")

	text, isErr = callText(t, ctx, session, "list_processed", map[string]any{"tag": "finance"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "scan.pdf")
	assert.NotContains(t, text, "recipe")
}
