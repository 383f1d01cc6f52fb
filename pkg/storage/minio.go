package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements ObjectStore using MinIO or any S3 endpoint
type MinIOStorage struct {
	client    *minio.Client
	endpoint  string
	publicURL string
	useSSL    bool
	known     map[string]bool
}

// Config holds MinIO connection configuration
type Config struct {
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewMinIO creates a new MinIO storage client
func NewMinIO(cfg Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	return &MinIOStorage{
		client:    client,
		endpoint:  cfg.Endpoint,
		publicURL: cfg.PublicURL,
		useSSL:    cfg.UseSSL,
		known:     make(map[string]bool),
	}, nil
}

// ensureBucket creates the bucket on first use. Backups are private, so no
// bucket policy is applied.
func (s *MinIOStorage) ensureBucket(ctx context.Context, bucket string) error {
	if s.known[bucket] {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("📦 Created MinIO bucket: %s", bucket)
	}
	s.known[bucket] = true
	return nil
}

// Put uploads r as bucket/name
func (s *MinIOStorage) Put(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) (*Object, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	info, err := s.client.PutObject(ctx, bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	return &Object{
		Bucket: bucket,
		Key:    name,
		Size:   info.Size,
		URL:    s.objectURL(bucket, name),
	}, nil
}

func (s *MinIOStorage) objectURL(bucket, name string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), bucket, name)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, bucket, name)
}

var _ ObjectStore = (*MinIOStorage)(nil)
