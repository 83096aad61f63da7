package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HELIX_STORE", "")
	t.Setenv("HELIX_BATCH_CONCURRENCY", "")
	t.Setenv("HELIX_LLM_PROVIDER", "")
	t.Setenv("HELIX_HTTP_TIMEOUT", "")

	cfg := Load()
	assert.Equal(t, "surrealdb", cfg.Store)
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.Equal(t, 10, cfg.MaxUploadFiles)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HELIX_STORE", "Firestore")
	t.Setenv("HELIX_BATCH_CONCURRENCY", "2")
	t.Setenv("HELIX_HTTP_TIMEOUT", "5s")
	t.Setenv("HELIX_LOG_LEVEL", "debug")
	t.Setenv("HELIX_MAX_UPLOAD_FILES", "not-a-number")

	cfg := Load()
	assert.Equal(t, "firestore", cfg.Store)
	assert.Equal(t, 2, cfg.BatchConcurrency)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 10, cfg.MaxUploadFiles)
}

func TestLLMModelOrDefault(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{"ollama", "", "llama3.2"},
		{"openai", "", "gpt-4o-mini"},
		{"gemini", "", "gemini-2.0-flash"},
		{"anthropic", "claude-custom", "claude-custom"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{LLMProvider: tt.provider, LLMModel: tt.model}
			assert.Equal(t, tt.want, cfg.LLMModelOrDefault())
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("batch finished", "batch_id", "abc")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "batch_id=abc")
	assert.Contains(t, file.String(), `"batch_id":"abc"`)
	assert.NotContains(t, file.String(), "hidden")
}
