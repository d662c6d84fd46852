// Package migrations applies the bookkeeping schema (history and confirmed
// queries) to a target database.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "querypilot_schema_migrations"

// advisoryLockKey serializes runners that migrate the same database from
// several processes.
const advisoryLockKey int64 = 0x7170696c6f74

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// NewRunnerFS reads migrations from the sql/ directory of fsys.
func NewRunnerFS(fsys fs.FS) *Runner {
	return &Runner{fsys: fsys}
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Status describes one known migration.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := listAppliedVersions(ctx, db, false)
	if err != nil {
		return 0, err
	}

	appliedSet := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		appliedSet[version] = struct{}{}
	}

	runCount := 0
	for _, item := range migrations {
		if _, ok := appliedSet[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		ran, err := applyMigration(ctx, db, item.Version, item.UpSQL)
		if err != nil {
			return runCount, err
		}
		if ran {
			runCount++
		}
	}
	return runCount, nil
}

// Down rolls back the latest applied migrations. steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}

	applied, err := listAppliedVersions(ctx, db, true)
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, version := range applied {
		if runCount >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := rollbackMigration(ctx, db, item.Version, item.DownSQL); err != nil {
			return runCount, err
		}
		runCount++
	}

	return runCount, nil
}

// Status lists every known migration and whether it is applied.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := listAppliedVersions(ctx, db, false)
	if err != nil {
		return nil, err
	}
	appliedSet := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		appliedSet[version] = struct{}{}
	}

	out := make([]Status, 0, len(migrations))
	for _, item := range migrations {
		_, ok := appliedSet[item.Version]
		out = append(out, Status{Version: item.Version, Name: item.Name, Applied: ok})
	}
	return out, nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	_, err := db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

// applyMigration runs script under the advisory lock. It reports false when
// another runner applied the version first.
func applyMigration(ctx context.Context, db *sql.DB, version int64, script string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+migrationTable+` WHERE version = $1)`, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return false, fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version) VALUES ($1)`, version); err != nil {
		return false, fmt.Errorf("mark migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %d: %w", version, err)
	}
	return true, nil
}

func rollbackMigration(ctx context.Context, db *sql.DB, version int64, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("rollback migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+migrationTable+` WHERE version = $1`, version); err != nil {
		return fmt.Errorf("unmark migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback %d: %w", version, err)
	}
	return nil
}

func listAppliedVersions(ctx context.Context, db *sql.DB, desc bool) ([]int64, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}

		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		if item.Name != "" && item.Name != matches[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		item.Version = version
		item.Name = matches[2]
		switch matches[3] {
		case "up":
			item.UpSQL = string(script)
		case "down":
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	versions := make([]int64, 0, len(items))
	for version := range items {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		item := items[version]
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", version)
		}
		migrations = append(migrations, item)
	}
	return migrations, nil
}
