package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Storage keeps document bytes in one minio bucket.
type Storage struct {
	s3            *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        *zap.SugaredLogger
}

func NewStorage(s3 *minio.Client, bucket string, presignExpiry time.Duration, logger *zap.SugaredLogger) *Storage {
	if presignExpiry <= 0 {
		// 60min expiration time
		presignExpiry = time.Minute * 60
	}

	return &Storage{s3: s3, bucket: bucket, presignExpiry: presignExpiry, logger: logger}
}

func (s Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.s3.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.s3.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
		s.logger.Infow("created bucket", "bucket", s.bucket)
	}

	return nil
}

// Upload stores data under objectName and returns the bucket it landed in.
func (s Storage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to create bucket: %w", err)
	}

	_, err := s.s3.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return s.bucket, nil
}

func (s Storage) GeneratePresignedUrl(ctx context.Context, bucket, objectName string) (string, error) {
	if bucket == "" || objectName == "" {
		return "", errors.New("bucket name and unique file name cannot be empty")
	}

	presignedURL, err := s.s3.PresignedGetObject(ctx, bucket, objectName, s.presignExpiry, nil)
	if err != nil {
		return "", err
	}

	return presignedURL.String(), nil
}

func (s Storage) RemoveObject(ctx context.Context, bucket, objectName string) error {
	if bucket == "" || objectName == "" {
		return errors.New("bucket name and unique file name cannot be empty")
	}

	return s.s3.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}
