package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querypilot/querypilot/internal/assist"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/export"
	"github.com/querypilot/querypilot/internal/history"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/rules"
	"github.com/querypilot/querypilot/internal/storage"
)

const maxRequestBodyBytes = 1 << 20

type ReadinessCheck func(ctx context.Context) error

// Databases lists and opens target databases.
type Databases interface {
	ListDatabases(ctx context.Context) ([]string, error)
	Target(ctx context.Context, name string) (database.Target, error)
}

type HistoryLister interface {
	ListAll(ctx context.Context) ([]history.Item, error)
}

type Assistant interface {
	Ask(ctx context.Context, databaseName, question string) (assist.Answer, error)
	Confirm(ctx context.Context, in assist.ConfirmInput) (assist.ConfirmResult, error)
}

type Exporter interface {
	Export(ctx context.Context, databaseName, query string) (export.Export, error)
	Download(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Databases         Databases
	Histories         history.Source
	HistoryLister     HistoryLister
	Assistant         Assistant
	Normalizer        *rules.Normalizer
	Exporter          Exporter
	UI                http.Handler
}

type route struct {
	pattern string
	handler func(deps Dependencies, w http.ResponseWriter, r *http.Request)
}

var protectedRoutes = []route{
	{"GET /v1/databases", handleListDatabases},
	{"GET /v1/databases/{db}/schema", handleGetSchema},
	{"POST /v1/normalize", handleNormalize},
	{"POST /v1/ask", handleAsk},
	{"GET /v1/history", handleListHistory},
	{"GET /v1/history/{db}/{id}", handleGetHistory},
	{"DELETE /v1/history/{db}/{id}", handleDeleteHistory},
	{"POST /v1/confirm", handleConfirm},
	{"POST /v1/exports", handleCreateExport},
	{"GET /v1/exports/{key...}", handleDownloadExport},
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	for _, rt := range protectedRoutes {
		handle := rt.handler
		protected.HandleFunc(rt.pattern, func(w http.ResponseWriter, r *http.Request) {
			handle(deps, w, r)
		})
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, rt := range protectedRoutes {
		mux.Handle(rt.pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, observability.RecoverMiddleware(deps.Logger))
	return chain(mux, middlewares...)
}

func CheckDatabaseDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Database.DSN == "" {
			return errors.New("database dsn is not configured")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Export.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writeDomainError maps sentinel errors to statuses; anything else is a 500
// with fallbackCode.
func writeDomainError(r *http.Request, w http.ResponseWriter, err error, fallbackCode, fallbackMessage string) {
	ctx := r.Context()
	details := map[string]any{"details": err.Error()}
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "DATABASE_NOT_FOUND", "database not found", false, details)
	case errors.Is(err, history.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "HISTORY_NOT_FOUND", "History item not found", false, nil)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(ctx, w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export not found", false, nil)
	case errors.Is(err, assist.ErrInvalidInput), errors.Is(err, export.ErrInvalidInput):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
	case errors.Is(err, export.ErrInvalidKey):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_EXPORT_KEY", "invalid export key", false, details)
	case errors.Is(err, database.ErrReadOnly):
		writeError(ctx, w, http.StatusBadRequest, "READ_ONLY_VIOLATION", err.Error(), false, nil)
	case errors.Is(err, assist.ErrGenerate):
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", "failed to generate sql", true, details)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", true, details)
	default:
		writeError(ctx, w, http.StatusInternalServerError, fallbackCode, fallbackMessage, true, details)
	}
}
