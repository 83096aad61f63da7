package placement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage keeps artifacts in a Cloud Storage bucket. Exclusive creates
// rely on the DoesNotExist object precondition.
type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStorage opens bucket and stores every object under prefix.
func NewGCSStorage(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(bucket), prefix: strings.Trim(prefix, "/")}, nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) object(p string) *storage.ObjectHandle {
	return s.bucket.Object(path.Join(s.prefix, path.Clean(p)))
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func (s *GCSStorage) CreateExclusive(ctx context.Context, p string, data []byte) error {
	w := s.object(p).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			return ErrExist
		}
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return ErrExist
		}
		return fmt.Errorf("finalize %s: %w", p, err)
	}
	return nil
}

func (s *GCSStorage) MoveFrom(ctx context.Context, src, p string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	w := s.object(p).NewWriter(ctx)
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", p, err)
	}
	_ = in.Close()
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}

func (s *GCSStorage) ReadFile(ctx context.Context, p string) ([]byte, error) {
	r, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStorage) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	r, err := s.object(p).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return r, nil
}

func (s *GCSStorage) Stat(ctx context.Context, p string) (ObjectInfo, error) {
	attrs, err := s.object(p).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return ObjectInfo{Size: attrs.Size, ModTime: attrs.Updated}, nil
}

func (s *GCSStorage) List(ctx context.Context, dir string) ([]string, error) {
	prefix := path.Join(s.prefix, path.Clean(dir)) + "/"
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		if attrs.Name == "" {
			continue // synthetic directory entry
		}
		names = append(names, strings.TrimPrefix(attrs.Name, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *GCSStorage) Remove(ctx context.Context, p string) error {
	err := s.object(p).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
