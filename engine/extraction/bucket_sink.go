package extraction

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"runtime"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig locates an S3 compatible bucket.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// BucketSink uploads images as {Prefix}/{index}.{Extension}.
type BucketSink struct {
	Client    *minio.Client
	Bucket    string
	Prefix    string
	Extension string
	Workers   int
}

// NewBucketSink connects to the bucket, creating it if it does not exist.
func NewBucketSink(ctx context.Context, cfg BucketConfig, extension string) (*BucketSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		Logger.Info("Created bucket", "bucket", cfg.Bucket)
	}

	return &BucketSink{
		Client:    client,
		Bucket:    cfg.Bucket,
		Extension: extension,
		Workers:   runtime.NumCPU(),
	}, nil
}

// WithPrefix returns a copy of s writing under prefix.
func (s *BucketSink) WithPrefix(prefix string) *BucketSink {
	c := *s
	c.Prefix = prefix
	return &c
}

// ObjectKey returns the key written for image index.
func (s *BucketSink) ObjectKey(index int) string {
	ext := s.Extension
	if ext == "" {
		ext = DefaultImageFormat
	}
	return path.Join(s.Prefix, strconv.Itoa(index)+"."+ext)
}

// Persist uploads every image in parallel and aggregates the failures.
func (s *BucketSink) Persist(ctx context.Context, images []RenderedImage) error {
	contentType := mime.TypeByExtension("." + s.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return persistAll(ctx, images, s.Workers, func(i int, img RenderedImage) *PersistenceError {
		key := s.ObjectKey(i)
		_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(img.Data), int64(len(img.Data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return &PersistenceError{Index: i, Path: key, Err: err}
		}
		return nil
	})
}
