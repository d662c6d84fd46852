package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/querypilot/querypilot/internal/cli/querypilotctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("QUERYPILOT_CLI_TIMEOUT")), 60*time.Second)
	options := querypilotctl.Options{
		BaseURL: envOr("QUERYPILOT_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("QUERYPILOT_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := querypilotctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid QUERYPILOT_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
