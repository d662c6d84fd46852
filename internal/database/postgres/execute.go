package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/database"
)

type ExecOptions struct {
	// RowLimit caps returned rows; zero means unlimited.
	RowLimit int
	// ReadOnly rejects statements that are not queries and runs the rest
	// inside a READ ONLY transaction.
	ReadOnly bool
	Timeout  time.Duration
}

type txBeginner interface {
	queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var readOnlyLeadingKeywords = map[string]struct{}{
	"select":  {},
	"with":    {},
	"values":  {},
	"table":   {},
	"show":    {},
	"explain": {},
}

// Execute runs query and collects its result set. Statements without a
// result set return empty columns and rows.
func Execute(ctx context.Context, db txBeginner, query string, opts ExecOptions) (database.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return database.QueryResult{}, fmt.Errorf("query is empty")
	}
	if opts.ReadOnly && !IsReadOnlyStatement(query) {
		return database.QueryResult{}, database.ErrReadOnly
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	if !opts.ReadOnly {
		result, err := collect(ctx, db, query, opts.RowLimit)
		result.Duration = time.Since(started)
		return result, err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return database.QueryResult{}, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := collect(ctx, tx, query, opts.RowLimit)
	if err != nil {
		return database.QueryResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return database.QueryResult{}, fmt.Errorf("commit read-only tx: %w", err)
	}
	result.Duration = time.Since(started)
	return result, nil
}

func collect(ctx context.Context, q queryer, query string, limit int) (database.QueryResult, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return database.QueryResult{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return database.QueryResult{}, fmt.Errorf("read columns: %w", err)
	}
	result := database.QueryResult{Columns: columns, Rows: [][]any{}}
	if columns == nil {
		result.Columns = []string{}
	}
	for rows.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return database.QueryResult{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return database.QueryResult{}, err
	}
	return result, nil
}

// IsReadOnlyStatement reports whether the first keyword of query, after
// comments and opening parentheses, starts a query.
func IsReadOnlyStatement(query string) bool {
	s := query
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return false
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s[2:], "*/")
			if idx < 0 {
				return false
			}
			s = s[idx+4:]
		default:
			end := 0
			for end < len(s) && isWordByte(s[end]) {
				end++
			}
			_, ok := readOnlyLeadingKeywords[strings.ToLower(s[:end])]
			return ok
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Target is a database.Target backed by a pool.
type Target struct {
	name string
	db   *sql.DB
	opts ExecOptions
}

func NewTarget(name string, db *sql.DB, opts ExecOptions) *Target {
	return &Target{name: name, db: db, opts: opts}
}

func (t *Target) Name() string {
	return t.name
}

func (t *Target) DB() *sql.DB {
	return t.db
}

func (t *Target) Schema(ctx context.Context) (database.SchemaInfo, error) {
	return Schema(ctx, t.db)
}

func (t *Target) Execute(ctx context.Context, query string) (database.QueryResult, error) {
	return Execute(ctx, t.db, query, t.opts)
}
