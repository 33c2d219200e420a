package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/grind-ai/grind/internal/config"
)

// GeminiClient generates text with the Gemini API. It serves
// long-context requests.
type GeminiClient struct {
	cfg      config.ProviderConfig
	client   *genai.Client
	endpoint Endpoint
}

// NewGeminiClient creates the long-context backend. Without an API key
// the client is created but every call fails with FailureMissingKey.
func NewGeminiClient(ctx context.Context, cfg config.ProviderConfig) (*GeminiClient, error) {
	c := &GeminiClient{
		cfg:      cfg,
		endpoint: Endpoint{Provider: "gemini", Label: "GEMINI"},
	}
	if cfg.APIKey == "" {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: NewHTTPClient(cfg.Timeout()),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Generate sends one user turn and joins the text parts of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsAvailable() {
		return nil, c.endpoint.Fail(FailureMissingKey, nil)
	}
	start := time.Now()

	ctx, cancel := WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(pickf(req.Temperature, c.cfg.Temperature))),
		MaxOutputTokens: int32(pick(req.MaxTokens, c.cfg.MaxTokens)),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.Prompt), gc)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, HTTPFail(c.Name(), c.endpoint.Label, apiErr.Code, apiErr.Message)
		}
		return nil, c.endpoint.Fail(FailureNetwork, err)
	}

	text := candidateText(result)
	if text == "" {
		return nil, c.endpoint.Fail(FailureEmpty, nil)
	}

	resp := &Response{
		Text:       text,
		Backend:    c.Name(),
		Model:      c.cfg.Model,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if result.UsageMetadata != nil {
		resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}
	return resp, nil
}

func candidateText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	content := result.Candidates[0].Content
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// IsAvailable reports whether an API key is configured.
func (c *GeminiClient) IsAvailable() bool {
	return c != nil && c.client != nil
}

// Name returns the backend name.
func (c *GeminiClient) Name() string {
	return c.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (c *GeminiClient) Label() string {
	return c.endpoint.Label
}
