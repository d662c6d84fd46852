package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/querypilot/querypilot/internal/config"
	dbpostgres "github.com/querypilot/querypilot/internal/database/postgres"
	"github.com/querypilot/querypilot/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	database := flag.String("database", "", "database to migrate; empty migrates every database on the server")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querypilot-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "QUERYPILOT_DB_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbConfig := dbpostgres.DBConfig{DSN: cfg.Database.DSN, MaxOpenConns: 2, MaxIdleConns: 1}
	serverDB, err := dbpostgres.Open(ctx, dbConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = serverDB.Close() }()

	connector, err := dbpostgres.NewConnector(serverDB, dbpostgres.ConnectorConfig{DB: dbConfig})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connector error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = connector.Close() }()

	names := []string{*database}
	if *database == "" {
		names, err = connector.ListDatabases(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list databases: %v\n", err)
			os.Exit(1)
		}
	}

	runner := migrations.NewRunner()
	failed := false
	for _, name := range names {
		db, err := connector.Database(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: open error: %v\n", name, err)
			failed = true
			continue
		}
		if err := migrate(ctx, runner, db, name, *direction, *steps); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func migrate(ctx context.Context, runner *migrations.Runner, db *sql.DB, name, direction string, steps int) error {
	switch direction {
	case "up":
		applied, err := runner.Up(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Printf("%s: applied %d migration(s)\n", name, applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		fmt.Printf("%s: rolled back %d migration(s)\n", name, rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%s: %06d_%s %s\n", name, status.Version, status.Name, state)
		}
	default:
		return fmt.Errorf("invalid direction: %s", direction)
	}
	return nil
}
