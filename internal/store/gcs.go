package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSImageStore reads and deletes uploaded screenshots in a single bucket.
type GCSImageStore struct {
	bucket *storage.BucketHandle
}

func NewGCSImageStore(client *storage.Client, bucket string) *GCSImageStore {
	return &GCSImageStore{bucket: client.Bucket(bucket)}
}

// Read returns the full contents of an object.
func (s *GCSImageStore) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gcs object %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcs object %s: %w", path, err)
	}
	return data, nil
}

// Delete removes an object. A missing object counts as already deleted so
// that a redelivered message can purge the same paths again.
func (s *GCSImageStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete gcs object %s: %w", path, err)
	}
	return nil
}
