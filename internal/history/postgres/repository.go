package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/querypilot/querypilot/internal/history"
)

// Repository is the history.Store of one database. The database name is
// recorded on every row.
type Repository struct {
	db       *sql.DB
	database string
}

func NewRepository(db *sql.DB, database string) *Repository {
	return &Repository{db: db, database: database}
}

func (r *Repository) SaveHistory(ctx context.Context, in history.SaveHistoryInput) (history.Item, error) {
	item := history.Item{
		Database:     r.database,
		Question:     in.Question,
		GeneratedSQL: in.GeneratedSQL,
	}
	if err := r.db.QueryRowContext(ctx, `
INSERT INTO history (database_name, question, generated_sql)
VALUES ($1, $2, $3)
RETURNING id, created_at`, r.database, in.Question, in.GeneratedSQL).Scan(&item.ID, &item.CreatedAt); err != nil {
		return history.Item{}, fmt.Errorf("save history: %w", err)
	}
	return item, nil
}

func (r *Repository) SaveConfirmed(ctx context.Context, in history.SaveConfirmedInput) (history.ConfirmedQuery, error) {
	var historyID any
	confirmed := history.ConfirmedQuery{
		Database:     r.database,
		Question:     in.Question,
		ConfirmedSQL: in.ConfirmedSQL,
	}
	if in.HistoryID > 0 {
		id := in.HistoryID
		historyID = id
		confirmed.HistoryID = &id
	}
	if err := r.db.QueryRowContext(ctx, `
INSERT INTO correct_queries (database_name, question, confirmed_sql, history_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`, r.database, in.Question, in.ConfirmedSQL, historyID).Scan(&confirmed.ID, &confirmed.CreatedAt); err != nil {
		return history.ConfirmedQuery{}, fmt.Errorf("save confirmed query: %w", err)
	}
	return confirmed, nil
}

func (r *Repository) ListHistory(ctx context.Context, limit int) ([]history.Item, error) {
	query := `
SELECT id, COALESCE(question, ''), COALESCE(generated_sql, ''), created_at
FROM history
ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += `
LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]history.Item, 0)
	for rows.Next() {
		item := history.Item{Database: r.database}
		var createdAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Question, &item.GeneratedSQL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		item.CreatedAt = createdAt.Time
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return items, nil
}

func (r *Repository) GetHistory(ctx context.Context, id int64) (history.Item, error) {
	item := history.Item{ID: id, Database: r.database}
	var createdAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(question, ''), COALESCE(generated_sql, ''), created_at
FROM history
WHERE id = $1`, id).Scan(&item.Question, &item.GeneratedSQL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Item{}, history.ErrNotFound
		}
		return history.Item{}, fmt.Errorf("get history: %w", err)
	}
	item.CreatedAt = createdAt.Time
	return item, nil
}

func (r *Repository) DeleteHistory(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete history rows affected: %w", err)
	}
	if affected == 0 {
		return history.ErrNotFound
	}
	return nil
}

// DatabaseOpener is satisfied by the target database connector.
type DatabaseOpener interface {
	ListDatabases(ctx context.Context) ([]string, error)
	Database(ctx context.Context, name string) (*sql.DB, error)
}

// Source adapts a DatabaseOpener to history.Source.
type Source struct {
	opener DatabaseOpener
}

func NewSource(opener DatabaseOpener) *Source {
	return &Source{opener: opener}
}

func (s *Source) ListDatabases(ctx context.Context) ([]string, error) {
	return s.opener.ListDatabases(ctx)
}

func (s *Source) History(ctx context.Context, database string) (history.Store, error) {
	db, err := s.opener.Database(ctx, database)
	if err != nil {
		return nil, err
	}
	return NewRepository(db, database), nil
}
