package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/your-org/facegroup/internal/config"
)

// MinIOStore reads uploaded images from the source bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *MinIOStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// GetObject retrieves data from MinIO by key.
func (s *MinIOStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// OpenObject returns a reader over the object plus its size and content
// type. The caller closes the reader.
func (s *MinIOStore) OpenObject(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, "", fmt.Errorf("get object %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, "", fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, info.Size, info.ContentType, nil
}

// EnableUploadNotifications asks MinIO to publish object-created events for
// keys under prefix ending in suffix to the target identified by arn (for
// example "arn:minio:sqs::facegroup:nats").
func (s *MinIOStore) EnableUploadNotifications(ctx context.Context, arn, prefix, suffix string) error {
	target, err := notification.NewArnFromString(arn)
	if err != nil {
		return fmt.Errorf("parse notification arn: %w", err)
	}

	queue := notification.NewConfig(target)
	queue.AddEvents(notification.ObjectCreatedAll)
	if prefix != "" {
		queue.AddFilterPrefix(prefix)
	}
	if suffix != "" {
		queue.AddFilterSuffix(suffix)
	}

	cfg := notification.Configuration{}
	cfg.AddQueue(queue)
	if err := s.client.SetBucketNotification(ctx, s.bucket, cfg); err != nil {
		return fmt.Errorf("set bucket notification: %w", err)
	}
	return nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
