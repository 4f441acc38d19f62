// Package storage mirrors backup artifacts to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kebairia/backupctl/internal/config"
)

type Storage struct {
	client     *minio.Client
	bucket     string
	pathPrefix string
}

// NewStorage creates a Storage from the offsite configuration. It does not
// contact the endpoint.
func NewStorage(cfg config.OffsiteConfig) (*Storage, error) {
	endpoint, secure := parseEndpoint(cfg.Endpoint)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	return &Storage{
		client:     client,
		bucket:     cfg.Bucket,
		pathPrefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// parseEndpoint strips the scheme; minio-go expects host:port.
func parseEndpoint(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "https://"), "/"), true
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/"), false
	default:
		return strings.TrimSuffix(raw, "/"), true
	}
}

// Key returns the object key for a backup file name.
func (s *Storage) Key(fileName string) string {
	if s.pathPrefix == "" {
		return fileName
	}
	return path.Join(s.pathPrefix, fileName)
}

// Upload copies the local file at localPath and returns its object key.
func (s *Storage) Upload(ctx context.Context, fileName, localPath string) (string, error) {
	key := s.Key(fileName)
	contentType := "application/sql"
	if strings.HasSuffix(fileName, ".zst") {
		contentType = "application/zstd"
	}

	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return key, nil
}

// Remove deletes the object stored under key.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
