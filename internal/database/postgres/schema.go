package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/database"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// bookkeepingTables live next to user tables but are not offered to the
// model.
var bookkeepingTables = map[string]struct{}{
	"history":                      {},
	"correct_queries":              {},
	"querypilot_schema_migrations": {},
}

func ListDatabases(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
SELECT datname
FROM pg_database
WHERE datistemplate = false
ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database rows: %w", err)
	}
	return names, nil
}

func DatabaseExists(ctx context.Context, q queryer, name string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM pg_database WHERE datname = $1 AND datistemplate = false
)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check database %s: %w", name, err)
	}
	return exists, nil
}

// Schema introspects the public schema, tables by name and columns by
// ordinal position.
func Schema(ctx context.Context, q queryer) (database.SchemaInfo, error) {
	rows, err := q.QueryContext(ctx, `
SELECT t.table_name, c.column_name, c.data_type
FROM information_schema.tables t
LEFT JOIN information_schema.columns c
	ON c.table_schema = t.table_schema AND c.table_name = t.table_name
WHERE t.table_schema = 'public'
ORDER BY t.table_name, c.ordinal_position`)
	if err != nil {
		return database.SchemaInfo{}, fmt.Errorf("query schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]database.Table, 0)
	for rows.Next() {
		var (
			tableName string
			column    sql.NullString
			dataType  sql.NullString
		)
		if err := rows.Scan(&tableName, &column, &dataType); err != nil {
			return database.SchemaInfo{}, fmt.Errorf("scan schema row: %w", err)
		}
		if _, skip := bookkeepingTables[tableName]; skip {
			continue
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, database.Table{Name: tableName, Columns: []database.Column{}})
		}
		if column.Valid {
			last := &tables[len(tables)-1]
			last.Columns = append(last.Columns, database.Column{Name: column.String, DataType: dataType.String})
		}
	}
	if err := rows.Err(); err != nil {
		return database.SchemaInfo{}, fmt.Errorf("iterate schema rows: %w", err)
	}
	return database.SchemaInfo{DDL: RenderDDL(tables), Tables: tables}, nil
}

// RenderDDL writes one CREATE TABLE statement per line.
func RenderDDL(tables []database.Table) string {
	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		cols := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			cols = append(cols, col.Name+" "+col.DataType)
		}
		statements = append(statements, fmt.Sprintf("CREATE TABLE %s (%s);", table.Name, strings.Join(cols, ", ")))
	}
	return strings.Join(statements, "\n")
}
