package placement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"
)

// ObjectInfo is what Stat reports about a stored object.
type ObjectInfo struct {
	Size    int64
	ModTime time.Time
}

// Storage is the object namespace placement writes into. Paths are
// slash-separated and relative to the storage root.
type Storage interface {
	// CreateExclusive writes data to p, failing with ErrExist if p is taken.
	CreateExclusive(ctx context.Context, p string, data []byte) error
	// MoveFrom relocates the local file src onto p, replacing whatever is there.
	MoveFrom(ctx context.Context, src, p string) error
	ReadFile(ctx context.Context, p string) ([]byte, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	// Stat fails with ErrNotFound if p does not exist.
	Stat(ctx context.Context, p string) (ObjectInfo, error)
	// List returns the base names of the objects directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
	// Remove deletes p. Missing objects are not an error.
	Remove(ctx context.Context, p string) error
}

// LocalStorage keeps artifacts on the local filesystem under Root.
type LocalStorage struct {
	Root string
}

// NewLocalStorage returns a filesystem-backed storage rooted at root.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{Root: root}
}

func (s *LocalStorage) resolve(p string) (string, error) {
	clean := path.Clean(p)
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("path %q escapes storage root", p)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) CreateExclusive(_ context.Context, p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExist
		}
		return fmt.Errorf("create %s: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("close %s: %w", p, err)
	}
	return nil
}

func (s *LocalStorage) MoveFrom(_ context.Context, src, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Rename(src, full); err == nil {
		return nil
	}
	// Rename fails across devices; fall back to copy then remove.
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(full, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	_ = in.Close()
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}

func (s *LocalStorage) ReadFile(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalStorage) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Stat(_ context.Context, p string) (ObjectInfo, error) {
	full, err := s.resolve(p)
	if err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return ObjectInfo{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *LocalStorage) List(_ context.Context, dir string) ([]string, error) {
	full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *LocalStorage) Remove(_ context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
