package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// ErrInvalidOwner is returned for owner ids that can't be used as a path segment.
var ErrInvalidOwner = errors.New("invalid owner id")

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,127}$`)

// ValidateOwner checks that owner is safe to use as a directory name.
func ValidateOwner(owner string) error {
	if !ownerPattern.MatchString(owner) || owner == "." || owner == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// Staging holds uploads between the request and placement, under
// <root>/<owner>/processing/<batch id>/.
type Staging struct {
	root string
}

// NewStaging creates a staging area below root.
func NewStaging(root string) *Staging {
	return &Staging{root: root}
}

// Dir returns the staging directory of one batch.
func (s *Staging) Dir(owner, batchID string) string {
	return filepath.Join(s.root, owner, "processing", batchID)
}

// Stage writes r to the batch's staging directory and returns the path.
// The 1-based index prefix keeps duplicate upload names apart.
func (s *Staging) Stage(owner, batchID string, index int, name string, r io.Reader) (string, error) {
	if err := ValidateOwner(owner); err != nil {
		return "", err
	}
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "upload"
	}

	dir := s.Dir(owner, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	p := filepath.Join(dir, strconv.Itoa(index)+"_"+base)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	return p, nil
}

// Cleanup removes the batch's staging directory and whatever is left in it.
func (s *Staging) Cleanup(owner, batchID string) error {
	if err := ValidateOwner(owner); err != nil {
		return err
	}
	return os.RemoveAll(s.Dir(owner, batchID))
}
