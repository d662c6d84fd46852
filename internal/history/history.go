// Package history keeps generated and user-confirmed queries inside each
// target database and merges history across databases.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

type Item struct {
	ID           int64     `json:"id"`
	Database     string    `json:"db"`
	Question     string    `json:"question"`
	GeneratedSQL string    `json:"generated_sql"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConfirmedQuery struct {
	ID           int64     `json:"id"`
	Database     string    `json:"db"`
	Question     string    `json:"question"`
	ConfirmedSQL string    `json:"confirmed_sql"`
	HistoryID    *int64    `json:"history_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type SaveHistoryInput struct {
	Question     string
	GeneratedSQL string
}

type SaveConfirmedInput struct {
	Question     string
	ConfirmedSQL string
	// HistoryID links the confirmation to the generated item; zero for none.
	HistoryID int64
}

// Store is the history of one database.
type Store interface {
	SaveHistory(ctx context.Context, in SaveHistoryInput) (Item, error)
	SaveConfirmed(ctx context.Context, in SaveConfirmedInput) (ConfirmedQuery, error)
	ListHistory(ctx context.Context, limit int) ([]Item, error)
	GetHistory(ctx context.Context, id int64) (Item, error)
	DeleteHistory(ctx context.Context, id int64) error
}

// Source resolves the history store of every database on a server.
type Source interface {
	ListDatabases(ctx context.Context) ([]string, error)
	History(ctx context.Context, database string) (Store, error)
}
