package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for objects, e.g. a CDN or the MinIO host.
	PublicURL string
}

type MinIO struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access key and secret key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "tender-uploads"
	}

	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}

	return &MinIO{mc: mc, bucket: bucket, publicURL: public + "/" + bucket}, nil
}

func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		slog.Default().InfoContext(ctx, "minio bucket created", "bucket", m.bucket)
	}
	return nil
}

func (m *MinIO) Save(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (string, error) {
	if size == 0 {
		return "", ErrEmptyFile
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := "tenders/" + objectName(originalName)
	_, err := m.mc.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return m.publicURL + "/" + key, nil
}

func (m *MinIO) key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, m.publicURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (m *MinIO) Owns(url string) bool {
	_, ok := m.key(url)
	return ok
}

func (m *MinIO) Remove(ctx context.Context, url string) error {
	key, ok := m.key(url)
	if !ok {
		return nil
	}
	return m.mc.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
