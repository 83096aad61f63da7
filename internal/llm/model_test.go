package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// stubLLM answers GenerateContent with a fixed response or error and
// records the call options it saw.
type stubLLM struct {
	resp *llms.ContentResponse
	err  error
	opts llms.CallOptions
	msgs []llms.MessageContent
}

func (s *stubLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.msgs = msgs
	for _, o := range options {
		o(&s.opts)
	}
	return s.resp, s.err
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestModelGenerate(t *testing.T) {
	stub := &stubLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        `{"name":"q3-report","summary":"s","tags":["a","b","c"]}`,
		GenerationInfo: map[string]any{"input_tokens": 321, "output_tokens": 17},
	}}}}
	m := NewModelFrom(stub, "claude-haiku", true)

	gen, err := m.Generate(context.Background(), "system", "document text")
	require.NoError(t, err)
	assert.Equal(t, int64(321), gen.InputTokens)
	assert.Equal(t, int64(17), gen.OutputTokens)
	assert.True(t, stub.opts.JSONMode)
	require.Len(t, stub.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, stub.msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, stub.msgs[1].Role)
	assert.Equal(t, "claude-haiku", m.Model())
}

func TestModelGenerateNoChoices(t *testing.T) {
	m := NewModelFrom(&stubLLM{resp: &llms.ContentResponse{}}, "m", false)
	_, err := m.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatalAPI)
}

func TestClassifyStopsOnProviderErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"exhausted credit", errors.New("Your credit balance is too low"), true},
		{"quota", errors.New("googleapi: Error 429: Quota exceeded for aiplatform"), true},
		{"rate limited", errors.New("rate limit reached for requests"), true},
		{"bad key", errors.New("openai: invalid api key provided"), true},
		{"billing disabled", errors.New("billing is not enabled for project"), true},
		{"forbidden status", errors.New("API returned unexpected status code: 403"), true},
		{"unauthorized status", fmt.Errorf("post: %w", errors.New("401 Unauthorized")), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), false},
		{"model missing", errors.New("API returned unexpected status code: 404"), false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))

			c := NewClassifier(NewModelFrom(&stubLLM{err: tt.err}, "m", true), nil, nil)
			_, err := c.Classify(context.Background(), "some extracted text")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			if tt.fatal {
				assert.ErrorIs(t, err, ErrFatalAPI)
			} else {
				assert.NotErrorIs(t, err, ErrFatalAPI)
			}
		})
	}
}

func TestWrapFatalErrorKeepsOthers(t *testing.T) {
	assert.NoError(t, wrapFatalError(nil))

	transient := errors.New("i/o timeout")
	assert.Same(t, transient, wrapFatalError(transient))
}
