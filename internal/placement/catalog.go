package placement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/raphaelgruber/helix/internal/models"
)

// placingWindow is how long after its sidecar an empty content object is
// taken to be a placement claim whose content has not been moved in yet.
const placingWindow = 2 * time.Minute

// Catalog reads and manages what placement wrote.
type Catalog struct {
	store  Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalog creates a catalog over store.
func NewCatalog(store Storage, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger, now: time.Now}
}

// List returns every readable metadata record per category. Sidecars that
// can't be read or parsed are skipped.
func (c *Catalog) List(ctx context.Context, owner string) (map[models.Category][]models.ProcessedFile, error) {
	out := make(map[models.Category][]models.ProcessedFile, len(models.Categories))
	for _, cat := range models.Categories {
		dir := ProcessedDir(owner, cat)
		names, err := c.store.List(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", cat, err)
		}
		files := []models.ProcessedFile{}
		for _, name := range names {
			if !strings.HasSuffix(name, metaExt) {
				continue
			}
			rec, err := c.readMeta(ctx, path.Join(dir, name))
			if err != nil {
				c.logger.Debug("skipping unreadable sidecar", "path", path.Join(dir, name), "error", err)
				continue
			}
			files = append(files, models.ProcessedFile{
				MetadataRecord: rec,
				Category:       cat,
				ResolvedName:   path.Join(string(cat), name),
			})
		}
		out[cat] = files
	}
	return out, nil
}

// Get reads the sidecar for a resolved name such as "docs/report.meta".
func (c *Catalog) Get(ctx context.Context, owner, resolvedName string) (models.MetadataRecord, error) {
	cat, base, err := ParseResolvedName(resolvedName)
	if err != nil {
		return models.MetadataRecord{}, err
	}
	return c.readMeta(ctx, path.Join(ProcessedDir(owner, cat), base+metaExt))
}

// Delete removes an item's sidecar and content. name may be the base name or
// any file name sharing that base.
func (c *Catalog) Delete(ctx context.Context, owner string, cat models.Category, name string) error {
	base := stem(name)
	dir := ProcessedDir(owner, cat)

	content, err := c.contentName(ctx, dir, base)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	metaPath := path.Join(dir, base+metaExt)
	if _, err := c.store.ReadFile(ctx, metaPath); errors.Is(err, ErrNotFound) && content == "" {
		return ErrNotFound
	}
	if content != "" {
		if err := c.store.Remove(ctx, path.Join(dir, content)); err != nil {
			return err
		}
	}
	if err := c.store.Remove(ctx, metaPath); err != nil {
		return err
	}
	c.logger.Info("processed item deleted", "owner", owner, "category", cat, "name", base)
	return nil
}

// Open returns the content artifact for a docs or media item along with its
// stored file name. Links have no content. Placement publishes the sidecar
// before the content replaces its empty placeholder, so an empty object with
// a recent sidecar is reported as not found until the move lands.
func (c *Catalog) Open(ctx context.Context, owner string, cat models.Category, name string) (io.ReadCloser, string, error) {
	if cat == models.CategoryLinks {
		return nil, "", ErrNotFound
	}
	dir := ProcessedDir(owner, cat)
	base := stem(name)
	content, err := c.contentName(ctx, dir, base)
	if err != nil {
		return nil, "", err
	}
	placing, err := c.placing(ctx, path.Join(dir, content), path.Join(dir, base+metaExt))
	if err != nil {
		return nil, "", err
	}
	if placing {
		return nil, "", fmt.Errorf("%w: %s is still being placed", ErrNotFound, content)
	}
	r, err := c.store.Open(ctx, path.Join(dir, content))
	if err != nil {
		return nil, "", err
	}
	return r, content, nil
}

func (c *Catalog) placing(ctx context.Context, contentPath, metaPath string) (bool, error) {
	info, err := c.store.Stat(ctx, contentPath)
	if err != nil || info.Size > 0 {
		return false, err
	}
	meta, err := c.store.Stat(ctx, metaPath)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.now().Sub(meta.ModTime) < placingWindow, nil
}

func (c *Catalog) readMeta(ctx context.Context, p string) (models.MetadataRecord, error) {
	var rec models.MetadataRecord
	data, err := c.store.ReadFile(ctx, p)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", p, err)
	}
	return rec, nil
}

// contentName finds the non-sidecar object whose stem is base.
func (c *Catalog) contentName(ctx context.Context, dir, base string) (string, error) {
	names, err := c.store.List(ctx, dir)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.HasSuffix(n, metaExt) {
			continue
		}
		if stem(n) == base {
			return n, nil
		}
	}
	return "", ErrNotFound
}

// ParseResolvedName splits "docs/report.meta" into its category and base name.
func ParseResolvedName(resolved string) (models.Category, string, error) {
	dir, file := path.Split(path.Clean(resolved))
	cat, ok := models.ParseCategory(strings.TrimSuffix(dir, "/"))
	if !ok || !strings.HasSuffix(file, metaExt) {
		return "", "", fmt.Errorf("invalid resolved name %q", resolved)
	}
	return cat, strings.TrimSuffix(file, metaExt), nil
}

func stem(name string) string {
	name = path.Base(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
