package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/config"
)

func TestNewLoggerAddsServiceAndRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileProd,
		Service:       config.ServiceConfig{Name: "querypilot-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	logger := NewLogger(cfg, &buf)
	logger.Info("starting",
		slog.String("database_dsn", "postgres://app:hunter2@db:5432/postgres"),
		slog.String("api_key", "k1"),
		slog.String("addr", ":8080"),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v, raw=%s", err, buf.String())
	}
	if entry["service"] != "querypilot-api" || entry["profile"] != "prod" {
		t.Fatalf("entry = %v", entry)
	}
	if entry["api_key"] != redacted {
		t.Fatalf("api_key = %v", entry["api_key"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("password leaked: %s", buf.String())
	}
	if entry["database_dsn"] != "postgres://app:xxxxx@db:5432/postgres" {
		t.Fatalf("database_dsn = %v", entry["database_dsn"])
	}
	if entry["addr"] != ":8080" {
		t.Fatalf("addr = %v", entry["addr"])
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn}}, &buf)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %s", buf.String())
	}
}

func TestRedactDSN(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@h/db":      "postgres://u:xxxxx@h/db",
		"postgres://u@h/db":        "postgres://u@h/db",
		"host=h user=u password=p": "host=h user=u password=p",
		"":                         "",
	}
	for in, want := range tests {
		if got := RedactDSN(in); got != want {
			t.Fatalf("RedactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
