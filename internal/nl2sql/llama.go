package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type LlamaConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Stop        []string
	Timeout     time.Duration
}

// LlamaGenerator calls the /completion endpoint of a llama.cpp server.
type LlamaGenerator struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	stop        []string
	client      *http.Client
}

func NewLlamaGenerator(cfg LlamaConfig) (*LlamaGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &LlamaGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		stop:        cfg.Stop,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

func (g *LlamaGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(completionRequest{
		Prompt:      BuildPrompt(req.Question, req.SchemaDDL),
		Stream:      false,
		NPredict:    g.maxTokens,
		Temperature: g.temperature,
		Stop:        g.stop,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read completion response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("completion failed status=%d body=%s", resp.StatusCode, truncate(string(raw), 512))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode completion response: %w", err)
	}

	sql := TidySQL(parsed.Content)
	if sql == "" {
		return Result{}, ErrEmptySQL
	}
	model := g.model
	if model == "" {
		model = parsed.Model
	}
	return Result{SQL: sql, Provider: "llama.cpp", Model: model}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
