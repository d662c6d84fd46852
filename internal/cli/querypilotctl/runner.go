// Package querypilotctl implements the querypilotctl command line client.
package querypilotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/querypilot/querypilot/internal/rules"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// errUsage marks argument errors; they exit with code 2.
var errUsage = errors.New("usage error")

type client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	if args == nil {
		args = []string{}
	}
	root := newRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		if errors.Is(err, errUsage) || isCobraUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func newRootCommand(defaults Options) *cobra.Command {
	c := &client{http: defaults.HTTPClient}

	root := &cobra.Command{
		Use:           "querypilotctl",
		Short:         "Command line client for the QueryPilot API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if c.http == nil {
				c.http = &http.Client{Timeout: c.timeout}
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "QueryPilot API base URL")
	flags.StringVar(&c.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 10s)")

	root.AddCommand(
		getCommand(c, "health", "Check API liveness", "/v1/health"),
		getCommand(c, "ready", "Check API readiness", "/v1/ready"),
		getCommand(c, "databases", "List databases on the server", "/v1/databases"),
		getCommand(c, "history", "List question history across databases", "/v1/history"),
		schemaCommand(c),
		askCommand(c),
		exportCommand(c),
		normalizeCommand(),
	)
	return root
}

func getCommand(c *client, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd, http.MethodGet, path, nil)
		},
	}
}

func schemaCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <database>",
		Short: "Print the schema DDL of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd, http.MethodGet, "/v1/databases/"+url.PathEscape(args[0])+"/schema", nil)
		},
	}
}

func askCommand(c *client) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "ask --database <db> <question>",
		Short: "Generate and run SQL for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(database) == "" {
				return fmt.Errorf("%w: --database is required", errUsage)
			}
			return c.call(cmd, http.MethodPost, "/v1/ask", map[string]string{
				"database": database,
				"question": strings.Join(args, " "),
			})
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "target database")
	return cmd
}

func exportCommand(c *client) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "export --database <db> <sql>",
		Short: "Export a query result to parquet in object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(database) == "" {
				return fmt.Errorf("%w: --database is required", errUsage)
			}
			return c.call(cmd, http.MethodPost, "/v1/exports", map[string]string{
				"database": database,
				"sql":      args[0],
			})
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "target database")
	return cmd
}

// normalizeCommand runs the default vocabulary locally without a server.
func normalizeCommand() *cobra.Command {
	var vocabularyPath string
	var explain bool
	cmd := &cobra.Command{
		Use:   "normalize <text>",
		Short: "Rewrite domain phrases and month/year mentions locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vocab *rules.Vocabulary
			if vocabularyPath != "" {
				loaded, err := rules.LoadFile(vocabularyPath)
				if err != nil {
					return err
				}
				vocab = loaded
			}
			normalized, subs := rules.New(vocab).Explain(strings.Join(args, " "))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), normalized)
			if explain {
				for _, sub := range subs {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %q -> %s\n", sub.Kind, sub.Match, sub.Replacement)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vocabularyPath, "vocabulary", "", "YAML vocabulary file")
	cmd.Flags().BoolVar(&explain, "explain", false, "list substitutions")
	return cmd
}

func (c *client) call(cmd *cobra.Command, method, path string, payload any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	code, body, err := c.doRequest(cmd.Context(), method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), pretty)
		return nil
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(body))
	}
	return nil
}

func (c *client) doRequest(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

// isCobraUsageError recognizes the flag and argument errors cobra returns
// as plain strings.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
