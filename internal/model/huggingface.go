package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grind-ai/grind/internal/config"
)

// GenerationClient talks to a text-generation inference endpoint
// (Hugging Face hosted Mixtral).
type GenerationClient struct {
	cfg      config.ProviderConfig
	client   *http.Client
	endpoint Endpoint
}

// NewHuggingFaceClient creates the logic/code backend. The token is optional.
func NewHuggingFaceClient(cfg config.ProviderConfig) *GenerationClient {
	return &GenerationClient{
		cfg:      cfg,
		client:   NewHTTPClient(cfg.Timeout()),
		endpoint: Endpoint{Provider: "huggingface", Label: "MISTRAL"},
	}
}

// Generate posts the prompt as inputs and reads generated_text.
func (c *GenerationClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	body := generationRequest{
		Inputs: req.Prompt,
		Parameters: generationParameters{
			MaxNewTokens: pick(req.MaxTokens, c.cfg.MaxTokens),
			Temperature:  pickf(req.Temperature, c.cfg.Temperature),
		},
	}
	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model
	raw, err := c.endpoint.PostJSON(ctx, c.client, url, headers, body)
	if err != nil {
		return nil, err
	}

	text, err := c.parse(raw)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:       text,
		Backend:    c.Name(),
		Model:      c.cfg.Model,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// parse accepts either [{"generated_text": ...}] or {"error": ...}.
func (c *GenerationClient) parse(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", c.endpoint.Fail(FailureEmpty, nil)
	}

	if trimmed[0] == '{' {
		var status generationStatus
		if err := c.endpoint.Decode(trimmed, &status); err != nil {
			return "", err
		}
		if status.Error != "" {
			pe := c.endpoint.Fail(FailureLoading, nil)
			pe.Message = status.Error
			return "", pe
		}
		return "", c.endpoint.Fail(FailureUnparseable, fmt.Errorf("unexpected object response"))
	}

	var items []json.RawMessage
	if err := c.endpoint.Decode(trimmed, &items); err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", c.endpoint.Fail(FailureEmpty, nil)
	}

	var text string
	var item generationResult
	if err := json.Unmarshal(items[0], &item); err == nil {
		text = item.GeneratedText
	} else if err := json.Unmarshal(items[0], &text); err != nil {
		return "", c.endpoint.Fail(FailureUnparseable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", c.endpoint.Fail(FailureEmpty, nil)
	}
	return text, nil
}

// IsAvailable reports whether the endpoint is configured. The hosted
// API accepts anonymous requests, so no token is required.
func (c *GenerationClient) IsAvailable() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.Model != ""
}

// Name returns the backend name.
func (c *GenerationClient) Name() string {
	return c.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (c *GenerationClient) Label() string {
	return c.endpoint.Label
}

// ============================================================
// Inference API Types
// ============================================================

type generationParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
}

type generationResult struct {
	GeneratedText string `json:"generated_text"`
}

type generationStatus struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}
