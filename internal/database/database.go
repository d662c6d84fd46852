// Package database describes the target PostgreSQL databases that questions
// are asked against: their introspected schema and query results.
package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("database: not found")
	// ErrReadOnly is returned when a statement other than a query is
	// executed while the read-only guard is on.
	ErrReadOnly = errors.New("database: only read-only statements are allowed")
)

// Target is one database on the server.
type Target interface {
	Name() string
	Schema(ctx context.Context) (SchemaInfo, error)
	Execute(ctx context.Context, query string) (QueryResult, error)
}

type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// SchemaInfo is the public schema of a database. DDL renders Tables as
// newline separated CREATE TABLE statements.
type SchemaInfo struct {
	DDL    string  `json:"ddl"`
	Tables []Table `json:"tables"`
}

type QueryResult struct {
	Columns []string
	Rows    [][]any
	// Truncated is set when more rows were available than the row limit.
	Truncated bool
	Duration  time.Duration
}
