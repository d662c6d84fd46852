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

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenAIGenerator sends the prompt as a single user message to an
// OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	payload := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "user", "content": BuildPrompt(req.Question, req.SchemaDDL)},
		},
		"temperature": g.temperature,
	}
	if g.maxTokens > 0 {
		payload["max_tokens"] = g.maxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncate(string(rawRespBody), 512))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices")
	}

	sql := TidySQL(parsed.Choices[0].Message.Content)
	if sql == "" {
		return Result{}, ErrEmptySQL
	}
	return Result{
		SQL:      sql,
		Provider: "openai-compatible",
		Model:    g.model,
	}, nil
}
