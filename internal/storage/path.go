package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ExportPrefix = "exports"

var databaseComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]{0,62}$`)

// BuildExportKey returns exports/<database>/<yyyy-mm-dd>/<id>.parquet, dated
// in UTC.
func BuildExportKey(database string, at time.Time, id uuid.UUID) (string, error) {
	if !databaseComponentPattern.MatchString(database) {
		return "", fmt.Errorf("invalid database name for export key: %q", database)
	}
	if id == uuid.Nil {
		return "", fmt.Errorf("export id is required")
	}
	ts := at.UTC()
	return path.Join(
		ExportPrefix,
		database,
		fmt.Sprintf("%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		id.String()+".parquet",
	), nil
}

// ExportKey is a parsed export object key.
type ExportKey struct {
	Database string
	Date     string
	ID       uuid.UUID
}

// ParseExportKey accepts only keys produced by BuildExportKey.
func ParseExportKey(key string) (ExportKey, error) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 4 || parts[0] != ExportPrefix {
		return ExportKey{}, fmt.Errorf("invalid export key: %q", key)
	}
	if !databaseComponentPattern.MatchString(parts[1]) {
		return ExportKey{}, fmt.Errorf("invalid export key database: %q", parts[1])
	}
	if _, err := time.Parse("2006-01-02", parts[2]); err != nil {
		return ExportKey{}, fmt.Errorf("invalid export key date: %q", parts[2])
	}
	name, ok := strings.CutSuffix(parts[3], ".parquet")
	if !ok {
		return ExportKey{}, fmt.Errorf("invalid export key file: %q", parts[3])
	}
	id, err := uuid.Parse(name)
	if err != nil {
		return ExportKey{}, fmt.Errorf("invalid export key id: %w", err)
	}
	return ExportKey{Database: parts[1], Date: parts[2], ID: id}, nil
}
