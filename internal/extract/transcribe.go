package extract

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns an audio or video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	ready  bool
}

// NewWhisperTranscriber creates a transcriber. baseURL includes the API
// version prefix, e.g. https://api.openai.com/v1.
func NewWhisperTranscriber(baseURL, model, apiKey string, timeout time.Duration) *WhisperTranscriber {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if model == "" {
		model = openai.Whisper1
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		ready:  apiKey != "" && baseURL != "",
	}
}

// Transcribe uploads the file and returns the transcript text.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	if !w.ready {
		return "", ErrTranscriptionUnavailable
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   f,
		FilePath: filepath.Base(path),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(resp.Text), nil
}
