package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querypilot/querypilot/internal/api"
	"github.com/querypilot/querypilot/internal/api/uistatic"
	"github.com/querypilot/querypilot/internal/assist"
	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/config"
	dbpostgres "github.com/querypilot/querypilot/internal/database/postgres"
	"github.com/querypilot/querypilot/internal/export"
	"github.com/querypilot/querypilot/internal/history"
	historypostgres "github.com/querypilot/querypilot/internal/history/postgres"
	"github.com/querypilot/querypilot/internal/migrations"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/rules"
	s3store "github.com/querypilot/querypilot/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("querypilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	dbConfig := dbpostgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	serverDB, err := dbpostgres.Open(context.Background(), dbConfig)
	if err != nil {
		logger.Error("failed to open server db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = serverDB.Close() }()

	connectorConfig := dbpostgres.ConnectorConfig{
		DB: dbConfig,
		Exec: dbpostgres.ExecOptions{
			RowLimit: cfg.Query.RowLimit,
			ReadOnly: cfg.Query.ReadOnly,
			Timeout:  cfg.Query.Timeout,
		},
		Logger: logger,
	}
	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner()
		connectorConfig.Migrate = func(ctx context.Context, db *sql.DB) error {
			_, err := runner.Up(ctx, db, 0)
			return err
		}
	}
	connector, err := dbpostgres.NewConnector(serverDB, connectorConfig)
	if err != nil {
		logger.Error("failed to initialize database connector", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = connector.Close() }()

	normalizer := rules.New(nil)
	if cfg.Rules.VocabularyPath != "" {
		vocab, err := rules.LoadFile(cfg.Rules.VocabularyPath)
		if err != nil {
			logger.Error("failed to load vocabulary", slog.String("path", cfg.Rules.VocabularyPath), slog.Any("error", err))
			os.Exit(1)
		}
		normalizer = rules.New(vocab)
	}

	generator, err := newGenerator(cfg.Generator)
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	histories := historypostgres.NewSource(connector)
	assistant, err := assist.NewService(assist.Dependencies{
		Targets:    connector,
		Histories:  histories,
		Normalizer: normalizer,
		Generator:  generator,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialize assistant", slog.Any("error", err))
		os.Exit(1)
	}

	readiness := []api.ReadinessCheck{connector.HealthCheck}
	deps := api.Dependencies{
		Logger:            logger,
		DependencyTimeout: time.Second,
		Databases:         connector,
		Histories:         histories,
		HistoryLister:     history.NewAggregator(histories, logger, history.AggregatorConfig{}),
		Assistant:         assistant,
		Normalizer:        normalizer,
		UI:                uistatic.Handler(),
	}

	if cfg.Export.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exporter, err := export.NewExporter(connector, objectStore, logger)
		if err != nil {
			logger.Error("failed to initialize exporter", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exporter = exporter
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), objectStore.HealthCheck)
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("database_dsn", cfg.Database.DSN),
			slog.String("generator", string(cfg.Generator.Provider)),
			slog.Bool("export_enabled", cfg.Export.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newGenerator(cfg config.GeneratorConfig) (nl2sql.Generator, error) {
	switch cfg.Provider {
	case config.ProviderLlama:
		return nl2sql.NewLlamaGenerator(nl2sql.LlamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderOpenAI:
		return nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
