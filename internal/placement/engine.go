// Package placement names processed items and writes them, with their
// metadata sidecar, into <owner>/processed/<category>/.
package placement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/helix/internal/models"
)

const (
	metaExt = ".meta"

	// defaultMaxAttempts bounds the suffix search for one placement.
	defaultMaxAttempts = 10000
)

// Request describes one item to place.
type Request struct {
	Owner        string
	Category     models.Category
	Kind         models.ItemKind
	OriginalName string
	// SourcePath is the staged local file. Ignored for links.
	SourcePath   string
	ProposedName string
	Summary      string
	Tags         []string
}

// Engine places classified items into the processed store.
type Engine struct {
	store       Storage
	logger      *slog.Logger
	maxAttempts int
}

// NewEngine creates an engine writing into store.
func NewEngine(store Storage, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger, maxAttempts: defaultMaxAttempts}
}

// ProcessedDir is the storage directory for one owner's category.
func ProcessedDir(owner string, category models.Category) string {
	return path.Join(owner, "processed", string(category))
}

// Place claims a free base name in the category, relocates the content (files
// only) and writes the sidecar. It returns the sidecar path relative to the
// processed root, e.g. "docs/report-1.meta".
//
// Names are claimed with exclusive creates: the sidecar first, then a
// placeholder for the content. Losing either race releases what was claimed
// and moves on to the next suffix, so concurrent placements never overwrite
// each other.
func (e *Engine) Place(ctx context.Context, req Request) (string, error) {
	fallback := "file"
	ext := ""
	if req.Kind == models.KindLink {
		fallback = "link"
	} else {
		ext = filepath.Ext(req.OriginalName)
		if Reserved(req.OriginalName) {
			return "", &Error{Path: req.OriginalName, Err: ErrReservedExtension}
		}
	}

	base := Sanitize(req.ProposedName, fallback)
	dir := ProcessedDir(req.Owner, req.Category)

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := candidate(base, attempt)
		metaPath := path.Join(dir, name+metaExt)

		data, err := json.MarshalIndent(models.MetadataRecord{
			OldName: req.OriginalName,
			Name:    name,
			Summary: req.Summary,
			Tags:    nonNilTags(req.Tags),
		}, "", "  ")
		if err != nil {
			return "", &Error{Path: metaPath, Err: err}
		}

		err = e.store.CreateExclusive(ctx, metaPath, data)
		if errors.Is(err, ErrExist) {
			continue
		}
		if err != nil {
			return "", &Error{Path: metaPath, Err: err}
		}

		if req.Kind != models.KindLink {
			contentPath := path.Join(dir, name+ext)
			err := e.store.CreateExclusive(ctx, contentPath, nil)
			if errors.Is(err, ErrExist) {
				e.release(ctx, metaPath)
				continue
			}
			if err != nil {
				e.release(ctx, metaPath)
				return "", &Error{Path: contentPath, Err: err}
			}
			if err := e.store.MoveFrom(ctx, req.SourcePath, contentPath); err != nil {
				e.release(ctx, contentPath, metaPath)
				return "", &Error{Path: contentPath, Err: err}
			}
		}

		if attempt > 0 {
			e.logger.Debug("name collision resolved", "proposed", base, "placed", name, "attempts", attempt+1)
		}
		return path.Join(string(req.Category), name+metaExt), nil
	}

	return "", &Error{Path: path.Join(dir, base), Err: ErrExhausted}
}

// Reserved reports whether a content file named name would collide with
// the sidecar of its own placement.
func Reserved(name string) bool {
	return strings.EqualFold(filepath.Ext(name), metaExt)
}

func (e *Engine) release(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := e.store.Remove(ctx, p); err != nil {
			e.logger.Warn("failed to release placement claim", "path", p, "error", err)
		}
	}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
