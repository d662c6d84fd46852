package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

type AggregatorConfig struct {
	// PerDatabaseLimit caps rows read from each database; zero reads all.
	PerDatabaseLimit int
	// Parallelism bounds concurrent database visits.
	Parallelism int
}

type Aggregator struct {
	source Source
	logger *slog.Logger
	cfg    AggregatorConfig
}

func NewAggregator(source Source, logger *slog.Logger, cfg AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Aggregator{source: source, logger: logger, cfg: cfg}
}

// ListAll merges the history of every database, newest first. Databases
// that cannot be read are logged and skipped.
func (a *Aggregator) ListAll(ctx context.Context) ([]Item, error) {
	databases, err := a.source.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	var (
		mu  sync.Mutex
		all = make([]Item, 0)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallelism)
	for _, name := range databases {
		g.Go(func() error {
			items, err := a.listOne(gctx, name)
			if err != nil {
				a.logger.Warn("history_database_skipped", "database", name, "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		if all[i].Database != all[j].Database {
			return all[i].Database < all[j].Database
		}
		return all[i].ID > all[j].ID
	})
	return all, nil
}

func (a *Aggregator) listOne(ctx context.Context, database string) ([]Item, error) {
	store, err := a.source.History(ctx, database)
	if err != nil {
		return nil, err
	}
	items, err := store.ListHistory(ctx, a.cfg.PerDatabaseLimit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Database = database
	}
	return items, nil
}
