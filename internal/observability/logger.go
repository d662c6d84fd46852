package observability

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/querypilot/querypilot/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

const redacted = "[REDACTED]"

// secretAttrs are attribute keys whose values never reach the log output.
var secretAttrs = map[string]struct{}{
	"api_key":           {},
	"authorization":     {},
	"secret_access_key": {},
	"password":          {},
}

// NewLogger builds the service logger. Secret attributes are masked and
// DSN-like attributes (keys ending in "dsn") lose their password.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redactAttr}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	if _, ok := secretAttrs[key]; ok {
		return slog.String(attr.Key, redacted)
	}
	if strings.HasSuffix(key, "dsn") && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, RedactDSN(attr.Value.String()))
	}
	return attr
}

// RedactDSN masks the password of a URL-style connection string. Values
// that do not parse as URLs are returned unchanged.
func RedactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}
	if _, ok := parsed.User.Password(); !ok {
		return dsn
	}
	parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	return parsed.String()
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
