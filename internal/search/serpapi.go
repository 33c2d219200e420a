// Package search provides web search backends. They satisfy
// model.Backend so the fallback chain can run them like any model.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/model"
)

// SerpAPI queries Google through serpapi.com and answers with the top
// organic result.
type SerpAPI struct {
	cfg      config.ProviderConfig
	country  string
	language string
	client   *http.Client
	endpoint model.Endpoint
}

// NewSerpAPI creates the structured search backend.
func NewSerpAPI(cfg config.SearchConfig) *SerpAPI {
	return &SerpAPI{
		cfg:      cfg.SerpAPI,
		country:  cfg.Country,
		language: cfg.Language,
		client:   model.NewHTTPClient(cfg.SerpAPI.Timeout()),
		endpoint: model.Endpoint{Provider: "serpapi", Label: "SERPAPI"},
	}
}

// Generate searches for the request's query.
func (s *SerpAPI) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if !s.IsAvailable() {
		return nil, s.endpoint.Fail(model.FailureMissingKey, nil)
	}
	start := time.Now()

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", req.SearchText())
	params.Set("api_key", s.cfg.APIKey)
	params.Set("gl", s.country)
	params.Set("hl", s.language)

	raw, err := s.endpoint.Get(ctx, s.client, strings.TrimRight(s.cfg.BaseURL, "/")+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp serpResponse
	if err := s.endpoint.Decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		pe := s.endpoint.Fail(model.FailureNoResults, nil)
		pe.Message = resp.Error
		return nil, pe
	}
	if len(resp.OrganicResults) == 0 {
		return nil, s.endpoint.Fail(model.FailureNoResults, nil)
	}

	return &model.Response{
		Text:       formatOrganic(resp.OrganicResults[0]),
		Backend:    s.Name(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func formatOrganic(r organicResult) string {
	snippet := strings.TrimSpace(r.Snippet)
	if snippet == "" {
		snippet = "Sin resumen"
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Sin título"
	}
	return fmt.Sprintf("%s\n[Fuente: %s](%s)", snippet, title, r.Link)
}

// IsAvailable reports whether an API key is configured.
func (s *SerpAPI) IsAvailable() bool {
	return s != nil && s.cfg.APIKey != ""
}

// Name returns the backend name.
func (s *SerpAPI) Name() string {
	return s.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (s *SerpAPI) Label() string {
	return s.endpoint.Label
}

type organicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

type serpResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
	Error          string          `json:"error"`
}
