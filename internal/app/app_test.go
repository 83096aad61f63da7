package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix/internal/config"
	"github.com/raphaelgruber/helix/internal/status"
)

func memoryConfig(t *testing.T) config.Config {
	return config.Config{
		DataDir:          t.TempDir(),
		Store:            "memory",
		Storage:          "local",
		LLMProvider:      "ollama",
		OllamaHost:       "http://127.0.0.1:1",
		URLCacheSize:     8,
		BatchConcurrency: 2,
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.IsType(t, &status.MemoryStore{}, a.Store)
	assert.NotNil(t, a.Catalog)
	assert.Equal(t, 2, a.Runner.Concurrency())
	assert.Empty(t, a.Runner.Active())
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown store", func(c *config.Config) { c.Store = "mongo" }, `unknown store "mongo"`},
		{"unknown storage", func(c *config.Config) { c.Storage = "s3" }, `unknown storage "s3"`},
		{"firestore without project", func(c *config.Config) { c.Store = "firestore" }, "GOOGLE_CLOUD_PROJECT"},
		{"gcs without bucket", func(c *config.Config) { c.Storage = "gcs" }, "HELIX_GCS_BUCKET"},
		{"unknown provider", func(c *config.Config) { c.LLMProvider = "eliza" }, "unsupported LLM provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.mutate(&cfg)
			_, err := New(ctx, cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
