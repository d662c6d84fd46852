package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/storage"
)

const ContentType = "application/vnd.apache.parquet"

var (
	ErrInvalidKey   = errors.New("export: invalid key")
	ErrInvalidInput = errors.New("export: invalid input")
)

type Targets interface {
	Target(ctx context.Context, name string) (database.Target, error)
}

type Export struct {
	Key       string    `json:"key"`
	Database  string    `json:"database"`
	Size      int64     `json:"size"`
	Rows      int64     `json:"rows"`
	Truncated bool      `json:"truncated"`
	CreatedAt time.Time `json:"created_at"`
}

type Exporter struct {
	targets Targets
	store   storage.ObjectStore
	logger  *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

func NewExporter(targets Targets, store storage.ObjectStore, logger *slog.Logger) (*Exporter, error) {
	if targets == nil {
		return nil, errors.New("targets are required")
	}
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		targets: targets,
		store:   store,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.New,
	}, nil
}

// Export runs query against databaseName and uploads the result as Parquet
// under exports/<database>/<date>/<uuid>.parquet.
func (e *Exporter) Export(ctx context.Context, databaseName, query string) (Export, error) {
	if strings.TrimSpace(query) == "" {
		return Export{}, fmt.Errorf("%w: sql is required", ErrInvalidInput)
	}
	target, err := e.targets.Target(ctx, databaseName)
	if err != nil {
		return Export{}, fmt.Errorf("open database: %w", err)
	}
	result, err := target.Execute(ctx, query)
	if err != nil {
		return Export{}, fmt.Errorf("run export query: %w", err)
	}
	encoded, err := Encode(result)
	if err != nil {
		return Export{}, err
	}

	createdAt := e.now().UTC()
	key, err := storage.BuildExportKey(databaseName, createdAt, e.newID())
	if err != nil {
		return Export{}, err
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"database":  databaseName,
			"rows":      strconv.FormatInt(encoded.RowCount, 10),
			"truncated": strconv.FormatBool(result.Truncated),
		},
	})
	if err != nil {
		return Export{}, fmt.Errorf("upload export: %w", err)
	}
	size := info.Size
	if size <= 0 {
		size = int64(len(encoded.Data))
	}
	observability.ObserveExport(size)
	e.logger.Info("export_written", "database", databaseName, "key", key, "rows", encoded.RowCount, "bytes", size)

	return Export{
		Key:       key,
		Database:  databaseName,
		Size:      size,
		Rows:      encoded.RowCount,
		Truncated: result.Truncated,
		CreatedAt: createdAt,
	}, nil
}

// Download opens a previously written export. Keys not produced by Export
// are rejected with ErrInvalidKey.
func (e *Exporter) Download(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if _, err := storage.ParseExportKey(key); err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return e.store.Open(ctx, key)
}
