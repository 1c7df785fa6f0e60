package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/segmentio/ksuid"

	"contentmod/api/internal/apierr"
	"contentmod/api/internal/config"
)

// Uploader stores raw image bytes and hands back a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.BucketUploads
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Upload writes data under a date-prefixed key and returns the public URL.
// The request must not be marked completed if this fails.
func (s *ObjectStore) Upload(ctx context.Context, data []byte) (string, error) {
	objectKey := s.buildObjectKey()

	options := minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	}

	_, err := s.client.PutObject(ctx, s.cfg.BucketUploads, objectKey,
		bytes.NewReader(data), int64(len(data)), options)
	if err != nil {
		return "", &apierr.UploadError{Err: err}
	}

	return s.buildPublicURL(s.cfg.BucketUploads, objectKey), nil
}

func (s *ObjectStore) buildObjectKey() string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(datePrefix, ksuid.New().String())
}

func (s *ObjectStore) buildPublicURL(bucket, objectKey string) string {
	base := strings.TrimSuffix(s.cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s/%s", base, bucket, objectKey)
}
