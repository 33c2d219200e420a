package model

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/grind-ai/grind/internal/config"
)

// ChatCompletionClient talks to an OpenAI-compatible chat completions
// API. GRIND uses it for Groq, the primary backend.
type ChatCompletionClient struct {
	cfg      config.ProviderConfig
	client   *http.Client
	endpoint Endpoint
}

// NewGroqClient creates the primary backend client.
func NewGroqClient(cfg config.ProviderConfig) *ChatCompletionClient {
	return &ChatCompletionClient{
		cfg:      cfg,
		client:   NewHTTPClient(cfg.Timeout()),
		endpoint: Endpoint{Provider: "groq", Label: "GROQ"},
	}
}

// Generate sends the prompt as a single user message.
func (c *ChatCompletionClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsAvailable() {
		return nil, c.endpoint.Fail(FailureMissingKey, nil)
	}
	start := time.Now()

	body := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   pick(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: pickf(req.Temperature, c.cfg.Temperature),
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, err := c.endpoint.PostJSON(ctx, c.client, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", headers, body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := c.endpoint.Decode(raw, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, c.endpoint.Fail(FailureEmpty, nil)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, c.endpoint.Fail(FailureEmpty, nil)
	}

	return &Response{
		Text:       text,
		Backend:    c.Name(),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// IsAvailable reports whether an API key is configured.
func (c *ChatCompletionClient) IsAvailable() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Name returns the backend name.
func (c *ChatCompletionClient) Name() string {
	return c.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (c *ChatCompletionClient) Label() string {
	return c.endpoint.Label
}

// ============================================================
// Chat Completions API Types
// ============================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pickf(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
