package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix/internal/metrics"
)

type fakeGenerator struct {
	reply    string
	err      error
	gotUser  string
	gotSys   string
	inTokens int64
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (Generation, error) {
	f.gotSys = system
	f.gotUser = user
	if f.err != nil {
		return Generation{}, f.err
	}
	return Generation{Text: f.reply, InputTokens: f.inTokens, OutputTokens: 12}, nil
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Classification
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"name": "Quarterly_Report", "summary": "Q3 results.", "tags": ["finance", "q3", "report"]}`,
			want: Classification{Name: "Quarterly_Report", Summary: "Q3 results.", Tags: []string{"finance", "q3", "report"}},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"name\": \"x\", \"summary\": \"\", \"tags\": []}\n```",
			want: Classification{Name: "x", Summary: "", Tags: []string{}},
		},
		{name: "extra key", raw: `{"name": "x", "summary": "s", "tags": [], "score": 1}`, wantErr: true},
		{name: "missing tags", raw: `{"name": "x", "summary": "s"}`, wantErr: true},
		{name: "missing summary", raw: `{"name": "x", "tags": ["a"]}`, wantErr: true},
		{name: "tags wrong type", raw: `{"name": "x", "summary": "s", "tags": "a,b"}`, wantErr: true},
		{name: "empty name", raw: `{"name": "  ", "summary": "s", "tags": []}`, wantErr: true},
		{name: "prose", raw: `Sure! Here is the JSON you asked for.`, wantErr: true},
		{name: "trailing object", raw: `{"name": "x", "summary": "s", "tags": []} {"name": "y"}`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyTruncatesInput(t *testing.T) {
	gen := &fakeGenerator{reply: `{"name": "n", "summary": "s", "tags": ["a", "b", "c"]}`, inTokens: 400}
	m := metrics.NewCollector()
	c := NewClassifier(gen, m, nil)

	_, err := c.Classify(context.Background(), strings.Repeat("x", 2500))
	require.NoError(t, err)
	assert.Len(t, gen.gotUser, MaxInputChars)
	assert.Contains(t, gen.gotSys, "at least 3 tags")

	snap := m.Snapshot()
	require.NotNil(t, snap.Classify)
	assert.Equal(t, int64(1), snap.Classify.Count)
	assert.Equal(t, int64(400), *snap.Classify.TotalInputTokens)
}

func TestClassifyShortInputUnchanged(t *testing.T) {
	gen := &fakeGenerator{reply: `{"name": "n", "summary": "s", "tags": []}`}
	c := NewClassifier(gen, nil, nil)

	text := strings.Repeat("y", MaxInputChars)
	_, err := c.Classify(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, text, gen.gotUser)
}

func TestClassifyPropagatesErrors(t *testing.T) {
	c := NewClassifier(&fakeGenerator{err: wrapFatalError(errors.New("invalid api key"))}, nil, nil)
	_, err := c.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrFatalAPI)

	c = NewClassifier(&fakeGenerator{reply: "not json"}, nil, nil)
	_, err = c.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTokenUsage(t *testing.T) {
	in, out := tokenUsage(map[string]any{"PromptTokens": 10, "CompletionTokens": 5})
	assert.Equal(t, int64(10), in)
	assert.Equal(t, int64(5), out)

	in, out = tokenUsage(map[string]any{"InputTokens": float64(7), "OutputTokens": int64(3)})
	assert.Equal(t, int64(7), in)
	assert.Equal(t, int64(3), out)

	in, out = tokenUsage(nil)
	assert.Zero(t, in)
	assert.Zero(t, out)
}
