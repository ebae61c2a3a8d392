// Package objstore provides S3-compatible storage for media binaries.
// Only the returned file id and URL are ever persisted in records; the
// binary itself never enters the local store. When no bucket is
// configured the NoopBucket is used and media uploads are rejected,
// keeping the system in metadata-only mode.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured is returned when object storage is not configured.
var ErrNotConfigured = errors.New("object storage not configured")

// FileInfo describes an uploaded object. FileID and URL are what gets
// persisted on the owning media record.
type FileInfo struct {
	FileID      string
	URL         string
	Name        string
	Size        int64
	ContentType string
}

// Bucket uploads and removes media binaries and mints download URLs.
type Bucket interface {
	// Upload stores the object and returns its file id and a download URL.
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*FileInfo, error)

	// Remove deletes the object for the given file id.
	Remove(ctx context.Context, fileID string) error

	// PresignedURL returns a fresh pre-signed download URL for the file.
	// Returns ErrNotConfigured when storage is not configured.
	PresignedURL(ctx context.Context, fileID string) (string, time.Time, error)
}

// s3Client defines the minimal minio.Client operations used by S3Bucket.
// This interface enables testing with mock implementations.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, bucket, objectName string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client
// interface, hiding the concrete option types.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, objectName string) error {
	return w.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Bucket stores media in S3-compatible storage.
type S3Bucket struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload stores the object under a fresh uuid file id.
func (b *S3Bucket) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	fileID := uuid.NewString()
	if err := b.client.PutObject(ctx, b.bucket, fileID, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload media object: %w", err)
	}

	presigned, err := b.client.PresignedGetObject(ctx, b.bucket, fileID, b.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate download URL: %w", err)
	}

	return &FileInfo{
		FileID:      fileID,
		URL:         presigned.String(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Remove deletes the object for the given file id.
func (b *S3Bucket) Remove(ctx context.Context, fileID string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, fileID); err != nil {
		return fmt.Errorf("remove media object: %w", err)
	}
	return nil
}

// PresignedURL returns a fresh pre-signed GET URL for the file.
func (b *S3Bucket) PresignedURL(ctx context.Context, fileID string) (string, time.Time, error) {
	presigned, err := b.client.PresignedGetObject(ctx, b.bucket, fileID, b.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(b.urlExpiry), nil
}

// NoopBucket is used when object storage is not configured.
type NoopBucket struct{}

// Upload rejects uploads when storage is not configured.
func (NoopBucket) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*FileInfo, error) {
	return nil, ErrNotConfigured
}

// Remove is a no-op when storage is not configured.
func (NoopBucket) Remove(ctx context.Context, fileID string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured when storage is not configured.
func (NoopBucket) PresignedURL(ctx context.Context, fileID string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// Config holds S3-compatible storage settings. An empty Bucket disables
// object storage.
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    *bool
	URLExpiry time.Duration
}

// NewBucket creates the appropriate Bucket based on configuration.
// Returns NoopBucket when no bucket name is set.
func NewBucket(cfg Config) (Bucket, error) {
	if cfg.Bucket == "" {
		return NoopBucket{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	urlExpiry := cfg.URLExpiry
	if urlExpiry == 0 {
		urlExpiry = 7 * 24 * time.Hour
	}

	return &S3Bucket{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: urlExpiry,
	}, nil
}
