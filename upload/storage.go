package upload

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// Storage is the object store surface the uploader needs.
type Storage interface {
	// Put writes the object under name, replacing any previous content.
	Put(ctx context.Context, name string, r io.Reader) error
	Close() error
}

// GCSStorage writes objects into one Google Cloud Storage bucket.
type GCSStorage struct {
	client *gcs.Client
	bucket string
}

// NewGCSStorage connects to GCS using ambient credentials.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket}, nil
}

func (s *GCSStorage) Put(ctx context.Context, name string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", s.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}
