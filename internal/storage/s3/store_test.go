package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/querypilot/querypilot/internal/storage"
)

func TestPutUsesPrefixAndKeepsCallerKey(t *testing.T) {
	fake := &fakeClient{bucketExists: true}
	store, err := NewWithClient("bucket-a", "/querypilot/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/exports/billing/2026-02-20/a.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata:    map[string]string{"database": "billing"},
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "querypilot/prod/exports/billing/2026-02-20/a.parquet" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if fake.lastOpts.Metadata["database"] != "billing" {
		t.Fatalf("metadata = %v", fake.lastOpts.Metadata)
	}
	if info.Key != "/exports/billing/2026-02-20/a.parquet" {
		t.Fatalf("info.Key = %q", info.Key)
	}
}

func TestResolveKeyRejectsEscapes(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"", " ", "..", "../secrets.txt", "exports/../../x"} {
		if _, err := store.resolveKey(key); err == nil {
			t.Fatalf("resolveKey(%q) expected error", key)
		}
	}
	if got, err := store.resolveKey("exports/./billing//a.parquet"); err != nil || got != "exports/billing/a.parquet" {
		t.Fatalf("resolveKey() = %q, %v", got, err)
	}
}

func TestOpenMapsMissingObject(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{openErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, _, err := store.Open(context.Background(), "exports/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Open() error = %v, want ErrObjectNotFound", err)
	}
}

func TestOpenStreamsBody(t *testing.T) {
	store, err := NewWithClient("bucket-a", "p", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	reader, info, err := store.Open(context.Background(), "exports/a.parquet")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = reader.Close() }()
	body, _ := io.ReadAll(reader)
	if string(body) != "p/exports/a.parquet" || info.Key != "exports/a.parquet" {
		t.Fatalf("body = %q, info = %+v", body, info)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestHealthCheckRequiresBucket(t *testing.T) {
	store, _ := NewWithClient("bucket-a", "", &fakeClient{bucketExists: false})
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	store, _ = NewWithClient("bucket-a", "", &fakeClient{bucketExists: true})
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{deleteErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Delete(context.Background(), "exports/missing.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{raw: "https://minio.example.com", endpoint: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", useSSL: true, endpoint: "localhost:9000", secure: true},
		{raw: "localhost:9000", endpoint: "localhost:9000"},
		{raw: "ftp://minio", wantErr: true},
		{raw: "https://", wantErr: true},
		{raw: " ", wantErr: true},
	}
	for _, tt := range tests {
		endpoint, secure, err := parseEndpoint(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tt.raw, err)
		}
		if endpoint != tt.endpoint || secure != tt.secure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tt.raw, endpoint, secure)
		}
	}
}

func TestNewWithClientValidates(t *testing.T) {
	if _, err := NewWithClient("bucket", "", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewWithClient(" ", "", &fakeClient{}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}

type fakeClient struct {
	lastBucket         string
	lastKey            string
	lastOpts           storage.PutOptions
	bucketExists       bool
	createBucketCalled bool
	openErr            error
	deleteErr          error
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastOpts = opts
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Open(_ context.Context, _, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if f.openErr != nil {
		return nil, storage.ObjectInfo{}, f.openErr
	}
	return io.NopCloser(strings.NewReader(key)), storage.ObjectInfo{Key: key, Size: int64(len(key))}, nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
