// Package model provides the backend interface, the keyword router and
// the fallback chain that turns any backend failure into an answer.
package model

import "context"

// Backend is anything that can answer a prompt: a hosted model, a local
// model process, or a web search service.
type Backend interface {
	// Generate answers one request. Failures are *ProviderError.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// IsAvailable reports whether the backend is configured.
	IsAvailable() bool

	// Name returns the backend identifier used in logs and metrics.
	Name() string
}
