// Package extract turns batch items into plain text: documents are
// converted locally, media is transcribed, and links are resolved over the
// network with a short-lived cache.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/raphaelgruber/helix/internal/models"
)

// LinkResolver fetches a URL as text.
type LinkResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Converter turns a document file into text.
type Converter interface {
	ToText(path string) (string, error)
}

// Options tunes the link cache.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Extractor dispatches items to the converter, transcriber or link resolver.
type Extractor struct {
	docs   Converter
	media  Transcriber
	links  LinkResolver
	cache  *expirable.LRU[string, string]
	logger *slog.Logger
}

// New creates an extractor. A nil transcriber makes every media item fail
// with ErrTranscriptionUnavailable.
func New(docs Converter, media Transcriber, links LinkResolver, opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 256
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Extractor{
		docs:   docs,
		media:  media,
		links:  links,
		cache:  expirable.NewLRU[string, string](size, nil, ttl),
		logger: logger,
	}
}

// Extract returns the text of item. Every failure, including error-marked
// text from a resolver, comes back as an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, item models.Item) (string, error) {
	text, err := e.extract(ctx, item)
	if err == nil && strings.HasPrefix(strings.TrimSpace(text), ErrorMarker) {
		err = fmt.Errorf("%w: %s", ErrSoftFailure, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), ErrorMarker)))
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyContent
	}
	if err != nil {
		return "", &ExtractionError{Source: item.OriginalName, Err: err}
	}
	return text, nil
}

func (e *Extractor) extract(ctx context.Context, item models.Item) (string, error) {
	switch item.Kind {
	case models.KindLink:
		return e.resolveLink(ctx, item.URL)
	case models.KindFile:
		if item.StagedPath == "" {
			return "", errors.New("file item has no staged path")
		}
		if item.Category() == models.CategoryMedia {
			if e.media == nil {
				return "", ErrTranscriptionUnavailable
			}
			return e.media.Transcribe(ctx, item.StagedPath)
		}
		return e.docs.ToText(item.StagedPath)
	default:
		return "", fmt.Errorf("unknown item kind %q", item.Kind)
	}
}

func (e *Extractor) resolveLink(ctx context.Context, rawURL string) (string, error) {
	if e.links == nil {
		return "", errors.New("no link resolver configured")
	}
	if text, ok := e.cache.Get(rawURL); ok {
		e.logger.Debug("url cache hit", "url", rawURL)
		return text, nil
	}

	text, err := e.links.Resolve(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(strings.TrimSpace(text), ErrorMarker) {
		e.cache.Add(rawURL, text)
	}
	return text, nil
}
