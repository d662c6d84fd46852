package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/storage"
)

func TestExportUploadsParquetUnderDatedKey(t *testing.T) {
	store := newMemoryStore()
	target := &fakeTarget{result: database.QueryResult{
		Columns:   []string{"n"},
		Rows:      [][]any{{int64(1)}, {int64(2)}},
		Truncated: true,
	}}
	exporter := newTestExporter(t, target, store)

	exp, err := exporter.Export(context.Background(), "billing", "SELECT n FROM numbers")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	wantKey := "exports/billing/2026-03-04/5b4f3c0e-3c55-4f0e-9a61-0d1f58a7e2a1.parquet"
	if exp.Key != wantKey {
		t.Fatalf("Key = %q, want %q", exp.Key, wantKey)
	}
	if exp.Rows != 2 || !exp.Truncated || exp.Size != int64(len(store.objects[wantKey])) {
		t.Fatalf("export = %+v", exp)
	}
	if target.executed != "SELECT n FROM numbers" {
		t.Fatalf("executed = %q", target.executed)
	}
	opts := store.opts[wantKey]
	if opts.ContentType != ContentType || opts.Metadata["rows"] != "2" || opts.Metadata["database"] != "billing" {
		t.Fatalf("put options = %+v", opts)
	}
	readRows(t, store.objects[wantKey], 2)

	reader, info, err := exporter.Download(context.Background(), wantKey)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer func() { _ = reader.Close() }()
	body, _ := io.ReadAll(reader)
	if !bytes.Equal(body, store.objects[wantKey]) || info.Size != int64(len(body)) {
		t.Fatalf("downloaded %d bytes, info = %+v", len(body), info)
	}
}

func TestExportErrors(t *testing.T) {
	store := newMemoryStore()

	exporter := newTestExporter(t, &fakeTarget{err: errors.New("syntax error")}, store)
	if _, err := exporter.Export(context.Background(), "billing", "SELEC 1"); err == nil {
		t.Fatal("expected query error")
	}
	if _, err := exporter.Export(context.Background(), "billing", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Export(blank sql) error = %v, want ErrInvalidInput", err)
	}

	exporter = newTestExporter(t, &fakeTarget{}, store)
	if _, err := exporter.Export(context.Background(), "bad/name", "SELECT 1"); err == nil {
		t.Fatal("expected invalid key error")
	}
	if len(store.objects) != 0 {
		t.Fatalf("objects = %d, want none", len(store.objects))
	}
}

func TestDownloadValidatesKey(t *testing.T) {
	exporter := newTestExporter(t, &fakeTarget{}, newMemoryStore())
	if _, _, err := exporter.Download(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Download() error = %v, want ErrInvalidKey", err)
	}
	_, _, err := exporter.Download(context.Background(), "exports/billing/2026-03-04/5b4f3c0e-3c55-4f0e-9a61-0d1f58a7e2a1.parquet")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Download() error = %v, want ErrObjectNotFound", err)
	}
}

func newTestExporter(t *testing.T, target *fakeTarget, store *memoryStore) *Exporter {
	t.Helper()
	exporter, err := NewExporter(&fakeTargets{target: target}, store, nil)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	exporter.now = func() time.Time { return time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC) }
	exporter.newID = func() uuid.UUID { return uuid.MustParse("5b4f3c0e-3c55-4f0e-9a61-0d1f58a7e2a1") }
	return exporter
}

type fakeTargets struct {
	target *fakeTarget
}

func (f *fakeTargets) Target(context.Context, string) (database.Target, error) {
	return f.target, nil
}

type fakeTarget struct {
	result   database.QueryResult
	err      error
	executed string
}

func (f *fakeTarget) Name() string { return "billing" }

func (f *fakeTarget) Schema(context.Context) (database.SchemaInfo, error) {
	return database.SchemaInfo{}, nil
}

func (f *fakeTarget) Execute(_ context.Context, query string) (database.QueryResult, error) {
	f.executed = query
	return f.result, f.err
}

type memoryStore struct {
	objects map[string][]byte
	opts    map[string]storage.PutOptions
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, opts: map[string]storage.PutOptions{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.opts[key] = opts
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: opts.ContentType}, nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
