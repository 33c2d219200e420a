package model

// Kind is the category of a message, used to pick a backend chain.
type Kind string

const (
	KindLogic       Kind = "logic"
	KindProse       Kind = "prose"
	KindLongContext Kind = "long_context"
	KindSearch      Kind = "search"
	KindDefault     Kind = "default"
)

// Request represents a backend request.
type Request struct {
	// Prompt is the full text sent to language models.
	Prompt string `json:"prompt"`

	// Query is the user's own words. Search backends use it instead of
	// Prompt; empty means Prompt.
	Query string `json:"query,omitempty"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// SearchText returns the text a search backend should look up.
func (r *Request) SearchText() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Prompt
}

// Response represents a backend response.
type Response struct {
	Text       string `json:"text"`
	Backend    string `json:"backend"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// RoutingDecision records which chain a message was sent to and why.
type RoutingDecision struct {
	Kind    Kind   `json:"kind"`
	Keyword string `json:"keyword,omitempty"` // the keyword that matched
	Reason  string `json:"reason"`
}

// BackendStatus reports a backend for /api/status.
type BackendStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Breaker   string `json:"breaker"`
}
