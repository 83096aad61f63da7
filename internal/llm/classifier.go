package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
)

// MaxInputChars is the most text the classifier ever sends.
const MaxInputChars = 2000

// ErrMalformedResponse means the model did not answer with the expected JSON object.
var ErrMalformedResponse = errors.New("malformed classifier response")

const classifySystemPrompt = `You are a helpful assistant that is given a file and you need to generate a name and summary for the file.
You are only allowed to reply with the specified json format:
{"name": "string", "summary": "string", "tags": ["string", "string", "string"]}
Don't include any other text or comments.
Make sure that the name is very descriptive and only contains alphanumeric characters and underscores. Do not include extensions either.
Make sure you include at least 3 tags for the file, however feel free to include more if the file is related to multiple topics.`

// Classification is the model's proposal for an item.
type Classification struct {
	Name    string
	Summary string
	Tags    []string
}

// Classifier asks a Generator to name, summarize and tag text.
type Classifier struct {
	gen     Generator
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewClassifier creates a classifier. m may be nil.
func NewClassifier(gen Generator, m *metrics.Collector, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, metrics: m, logger: logger}
}

// Classify returns the name, summary and tags for text. Input longer than
// MaxInputChars is cut before sending.
func (c *Classifier) Classify(ctx context.Context, text string) (Classification, error) {
	text = models.Truncate(text, MaxInputChars)

	start := time.Now()
	gen, err := c.gen.Generate(ctx, classifySystemPrompt, text)
	if err != nil {
		return Classification{}, fmt.Errorf("classify: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordLLMUsage(metrics.OpClassify, time.Since(start), gen.InputTokens, gen.OutputTokens)
	}

	result, err := ParseClassification(gen.Text)
	if err != nil {
		c.logger.Debug("unparseable classifier reply", "reply", truncateForLog(gen.Text, 200), "error", err)
		return Classification{}, err
	}
	return result, nil
}

type classificationWire struct {
	Name    *string   `json:"name"`
	Summary *string   `json:"summary"`
	Tags    *[]string `json:"tags"`
}

// ParseClassification decodes a reply that must be a JSON object with
// exactly the keys name, summary and tags. A surrounding markdown code
// fence is tolerated.
func ParseClassification(raw string) (Classification, error) {
	body := stripCodeFence(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var wire classificationWire
	if err := dec.Decode(&wire); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Classification{}, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}

	switch {
	case wire.Name == nil:
		return Classification{}, fmt.Errorf("%w: missing name", ErrMalformedResponse)
	case wire.Summary == nil:
		return Classification{}, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	case wire.Tags == nil:
		return Classification{}, fmt.Errorf("%w: missing tags", ErrMalformedResponse)
	case strings.TrimSpace(*wire.Name) == "":
		return Classification{}, fmt.Errorf("%w: empty name", ErrMalformedResponse)
	}

	return Classification{
		Name:    *wire.Name,
		Summary: *wire.Summary,
		Tags:    *wire.Tags,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
