package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds settings for an S3-compatible MinIO server (local development).
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	PublicBaseURL   string
}

// MinIO stores derived video assets in a MinIO bucket.
type MinIO struct {
	client  *minio.Client
	fetcher *Fetcher
	cfg     MinIOConfig
	logger  *zap.Logger
}

// NewMinIO connects to MinIO and creates the bucket when missing.
func NewMinIO(ctx context.Context, cfg MinIOConfig, logger *zap.Logger) (*MinIO, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("minio bucket created", zap.String("bucket", cfg.Bucket))
	}
	return &MinIO{client: client, fetcher: NewFetcher(nil), cfg: cfg, logger: logger}, nil
}

// ObjectURL returns the URL of key.
func (m *MinIO) ObjectURL(key string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if m.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.cfg.Endpoint, m.cfg.Bucket, key)
}

// UploadFromURL downloads sourceURL and stores it under key.
func (m *MinIO) UploadFromURL(ctx context.Context, sourceURL, key string) (*Object, error) {
	src, err := m.fetcher.Open(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	defer src.Body.Close()

	size := src.ContentLength
	if size <= 0 {
		size = -1
	}
	if _, err := m.client.PutObject(ctx, m.cfg.Bucket, key, src.Body, size, minio.PutObjectOptions{
		ContentType: src.ContentType,
	}); err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	return &Object{Key: key, URL: m.ObjectURL(key)}, nil
}

// Delete removes key from the bucket.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
