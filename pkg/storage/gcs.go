package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements ObjectStore on Google Cloud Storage
type GCSStorage struct {
	client *gcs.Client
}

// NewGCS creates a Cloud Storage client. An empty credentials file uses
// application default credentials.
func NewGCS(ctx context.Context, credentialsFile string) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStorage{client: client}, nil
}

// Put uploads r as bucket/name
func (s *GCSStorage) Put(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (*Object, error) {
	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	return &Object{
		Bucket: bucket,
		Key:    name,
		Size:   n,
		URL:    fmt.Sprintf("gs://%s/%s", bucket, name),
	}, nil
}

// Close releases the client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

var _ ObjectStore = (*GCSStorage)(nil)
