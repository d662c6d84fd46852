// Package assist runs the question workflow: normalize the question,
// introspect the target schema, generate SQL, record it, and execute it.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/history"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/rules"
)

var (
	ErrInvalidInput = errors.New("assist: invalid input")
	// ErrGenerate wraps failures of the SQL generator.
	ErrGenerate = errors.New("assist: sql generation failed")
)

const (
	StatusSuccess = "success"
	StatusIgnored = "ignored"
)

// Targets opens target databases by name.
type Targets interface {
	Target(ctx context.Context, name string) (database.Target, error)
}

type Dependencies struct {
	Targets    Targets
	Histories  history.Source
	Normalizer *rules.Normalizer
	Generator  nl2sql.Generator
	Logger     *slog.Logger
}

type Service struct {
	targets    Targets
	histories  history.Source
	normalizer *rules.Normalizer
	generator  nl2sql.Generator
	logger     *slog.Logger
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Targets == nil {
		return nil, errors.New("targets are required")
	}
	if deps.Histories == nil {
		return nil, errors.New("history source is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("sql generator is required")
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = rules.New(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		targets:    deps.Targets,
		histories:  deps.Histories,
		normalizer: normalizer,
		generator:  deps.Generator,
		logger:     logger,
	}, nil
}

// Answer is the outcome of one question. A failing query is reported in
// Error with the generated SQL still present.
type Answer struct {
	Database           string               `json:"database"`
	Question           string               `json:"question"`
	NormalizedQuestion string               `json:"normalized_question"`
	Substitutions      []rules.Substitution `json:"substitutions"`
	SQL                string               `json:"sql"`
	Provider           string               `json:"provider"`
	Model              string               `json:"model,omitempty"`
	HistoryID          int64                `json:"history_id"`
	Columns            []string             `json:"columns"`
	Rows               [][]any              `json:"rows"`
	Truncated          bool                 `json:"truncated"`
	DurationMS         int64                `json:"duration_ms"`
	Error              string               `json:"error,omitempty"`
}

// Ask answers question against the named database. Errors are returned for
// failures before the SQL runs; a failing SQL statement is not an error.
func (s *Service) Ask(ctx context.Context, databaseName, question string) (Answer, error) {
	databaseName = strings.TrimSpace(databaseName)
	if databaseName == "" {
		return Answer{}, fmt.Errorf("%w: database is required", ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	answer, err := s.ask(ctx, databaseName, question)
	switch {
	case err != nil:
		observability.ObserveQuestion("error")
	case answer.Error != "":
		observability.ObserveQuestion("query_failed")
	default:
		observability.ObserveQuestion("ok")
	}
	return answer, err
}

func (s *Service) ask(ctx context.Context, databaseName, question string) (Answer, error) {
	normalized, subs := s.normalizer.Explain(question)
	observeSubstitutions(subs)
	answer := Answer{
		Database:           databaseName,
		Question:           question,
		NormalizedQuestion: normalized,
		Substitutions:      subs,
		Columns:            []string{},
		Rows:               [][]any{},
	}
	if answer.Substitutions == nil {
		answer.Substitutions = []rules.Substitution{}
	}

	target, err := s.targets.Target(ctx, databaseName)
	if err != nil {
		return Answer{}, fmt.Errorf("open database: %w", err)
	}
	schema, err := target.Schema(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("introspect schema: %w", err)
	}

	started := time.Now()
	generated, err := s.generator.Generate(ctx, nl2sql.Request{Question: normalized, SchemaDDL: schema.DDL})
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	observability.ObserveGeneration(generated.Provider, time.Since(started))
	answer.SQL = generated.SQL
	answer.Provider = generated.Provider
	answer.Model = generated.Model

	store, err := s.histories.History(ctx, databaseName)
	if err != nil {
		return Answer{}, fmt.Errorf("open history: %w", err)
	}
	item, err := store.SaveHistory(ctx, history.SaveHistoryInput{Question: question, GeneratedSQL: generated.SQL})
	if err != nil {
		return Answer{}, err
	}
	answer.HistoryID = item.ID

	result, err := target.Execute(ctx, generated.SQL)
	observability.ObserveQuery(result.Duration, err != nil)
	if err != nil {
		s.logger.Info("generated_query_failed", "database", databaseName, "history_id", item.ID, "error", err)
		answer.Error = "query failed: " + err.Error()
		return answer, nil
	}
	answer.Columns = result.Columns
	answer.Rows = result.Rows
	answer.Truncated = result.Truncated
	answer.DurationMS = result.Duration.Milliseconds()
	return answer, nil
}

func observeSubstitutions(subs []rules.Substitution) {
	counts := map[rules.SubstitutionKind]int{}
	for _, sub := range subs {
		counts[sub.Kind]++
	}
	for kind, count := range counts {
		observability.ObserveSubstitutions(string(kind), count)
	}
}

type ConfirmInput struct {
	Database     string `json:"database"`
	Question     string `json:"question"`
	ConfirmedSQL string `json:"confirmed_sql"`
	IsCorrect    string `json:"is_correct"`
	HistoryID    int64  `json:"history_id,omitempty"`
}

type ConfirmResult struct {
	Status    string                  `json:"status"`
	Confirmed *history.ConfirmedQuery `json:"confirmed,omitempty"`
}

// Confirm stores user feedback. Anything but is_correct "yes" is ignored.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	if in.IsCorrect != "yes" {
		observability.ObserveConfirmation(StatusIgnored)
		return ConfirmResult{Status: StatusIgnored}, nil
	}
	if strings.TrimSpace(in.Database) == "" {
		return ConfirmResult{}, fmt.Errorf("%w: database is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ConfirmedSQL) == "" {
		return ConfirmResult{}, fmt.Errorf("%w: confirmed_sql is required", ErrInvalidInput)
	}

	store, err := s.histories.History(ctx, in.Database)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("open history: %w", err)
	}
	confirmed, err := store.SaveConfirmed(ctx, history.SaveConfirmedInput{
		Question:     in.Question,
		ConfirmedSQL: in.ConfirmedSQL,
		HistoryID:    in.HistoryID,
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	observability.ObserveConfirmation(StatusSuccess)
	return ConfirmResult{Status: StatusSuccess, Confirmed: &confirmed}, nil
}
