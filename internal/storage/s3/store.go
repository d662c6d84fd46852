// Package s3 stores exports in an S3-compatible bucket through minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/querypilot/querypilot/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type client interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

type Store struct {
	client client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{
		client: mc,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cleanPrefix(cfg.Prefix),
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func NewWithClient(bucket, prefix string, c client) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Store{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	resolved, err := s.resolveKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Put(ctx, s.bucket, resolved, body, size, opts)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object %q: %w", resolved, err)
	}
	info.Key = key
	return info, nil
}

// Open streams the object. The caller closes the reader.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	resolved, err := s.resolveKey(key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	reader, info, err := s.client.Open(ctx, s.bucket, resolved)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("open object %q: %w", resolved, err)
	}
	info.Key = key
	return reader, info, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	resolved, err := s.resolveKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.Stat(ctx, s.bucket, resolved)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("stat object %q: %w", resolved, err)
	}
	info.Key = key
	return info, nil
}

// Delete is a no-op for missing objects.
func (s *Store) Delete(ctx context.Context, key string) error {
	resolved, err := s.resolveKey(key)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, s.bucket, resolved); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete object %q: %w", resolved, err)
	}
	return nil
}

// HealthCheck reports whether the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// resolveKey cleans key and places it under the store prefix. Keys that
// escape the prefix are rejected.
func (s *Store) resolveKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

func cleanPrefix(prefix string) string {
	prefix = path.Clean("/" + strings.TrimSpace(prefix))
	return strings.TrimPrefix(prefix, "/")
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioClient{client: mc}, nil
}

// parseEndpoint accepts host:port or a URL; an https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		useSSL = true
	case "http":
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint host is required")
	}
	return parsed.Host, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	uploaded, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{
		Size:         uploaded.Size,
		ContentType:  opts.ContentType,
		ETag:         uploaded.ETag,
		LastModified: uploaded.LastModified,
		Metadata:     opts.Metadata,
	}, nil
}

func (m *minioClient) Open(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, storage.ObjectInfo{}, mapMinioErr(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the body is read.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, storage.ObjectInfo{}, mapMinioErr(err)
	}
	return obj, objectInfo(stat), nil
}

func (m *minioClient) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	stat, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return objectInfo(stat), nil
}

func (m *minioClient) Delete(ctx context.Context, bucket, key string) error {
	return mapMinioErr(m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapMinioErr(err)
	}
	return exists, nil
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket, region string) error {
	return mapMinioErr(m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}))
}

func objectInfo(stat minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
		Metadata:     stat.UserMetadata,
	}
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}
