package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"

	"github.com/querypilot/querypilot/internal/database"
)

// MigrateFunc prepares a freshly opened database, typically by applying the
// bookkeeping migrations.
type MigrateFunc func(ctx context.Context, db *sql.DB) error

type ConnectorConfig struct {
	DB      DBConfig
	Exec    ExecOptions
	Migrate MigrateFunc
	Logger  *slog.Logger
}

var errConnectorClosed = errors.New("connector is closed")

// Connector hands out one cached pool per database on the server the
// server pool points at. mu guards pools and closing only; opening a new
// database runs outside it, deduplicated per name by opening.
type Connector struct {
	server  *sql.DB
	base    *pgx.ConnConfig
	cfg     ConnectorConfig
	logger  *slog.Logger
	open    func(ctx context.Context, name string) (*sql.DB, error)
	opening singleflight.Group
	mu      sync.Mutex
	pools   map[string]*sql.DB
	closing bool
}

func NewConnector(server *sql.DB, cfg ConnectorConfig) (*Connector, error) {
	if server == nil {
		return nil, errors.New("server db is required")
	}
	base, err := pgx.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connector{
		server: server,
		base:   base,
		cfg:    cfg,
		logger: logger,
		pools:  map[string]*sql.DB{},
	}
	c.open = c.openDatabase
	return c, nil
}

func (c *Connector) HealthCheck(ctx context.Context) error {
	if err := c.server.PingContext(ctx); err != nil {
		return fmt.Errorf("ping server db: %w", err)
	}
	return nil
}

func (c *Connector) ListDatabases(ctx context.Context) ([]string, error) {
	return ListDatabases(ctx, c.server)
}

// Database returns the pool for name, opening and migrating it on first use.
// Unknown and template databases yield database.ErrNotFound.
func (c *Connector) Database(ctx context.Context, name string) (*sql.DB, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty database name", database.ErrNotFound)
	}

	if db, err := c.cached(name); db != nil || err != nil {
		return db, err
	}
	v, err, _ := c.opening.Do(name, func() (any, error) {
		if db, err := c.cached(name); db != nil || err != nil {
			return db, err
		}
		db, err := c.prepare(ctx, name)
		if err != nil {
			return nil, err
		}
		return c.publish(name, db)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (c *Connector) cached(name string) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return nil, errConnectorClosed
	}
	return c.pools[name], nil
}

// prepare checks that name exists, opens it and runs the migrate hook.
func (c *Connector) prepare(ctx context.Context, name string) (*sql.DB, error) {
	exists, err := DatabaseExists(ctx, c.server, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, name)
	}

	db, err := c.open(ctx, name)
	if err != nil {
		return nil, err
	}
	if c.cfg.Migrate != nil {
		if err := c.cfg.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare database %s: %w", name, err)
		}
	}
	return db, nil
}

func (c *Connector) publish(name string, db *sql.DB) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		_ = db.Close()
		return nil, errConnectorClosed
	}
	c.pools[name] = db
	c.logger.Debug("database_opened", "database", name)
	return db, nil
}

// Target wraps the pool for name with the connector's execution options.
func (c *Connector) Target(ctx context.Context, name string) (database.Target, error) {
	db, err := c.Database(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewTarget(name, db, c.cfg.Exec), nil
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closing = true
	var errs []error
	for name, db := range c.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(c.pools, name)
	}
	return errors.Join(errs...)
}

func (c *Connector) openDatabase(ctx context.Context, name string) (*sql.DB, error) {
	db := stdlib.OpenDB(*databaseConfig(c.base, name))
	applyPoolLimits(db, c.cfg.DB)
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %s: %w", name, err)
	}
	return db, nil
}

func databaseConfig(base *pgx.ConnConfig, name string) *pgx.ConnConfig {
	cfg := base.Copy()
	cfg.Database = name
	return cfg
}
