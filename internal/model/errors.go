package model

import (
	"fmt"
	"strings"
)

// FailureKind classifies a backend failure.
type FailureKind string

const (
	FailureHTTP         FailureKind = "http"          // non-2xx status
	FailureNetwork      FailureKind = "network"       // transport error or timeout
	FailureUnparseable  FailureKind = "unparseable"   // body did not match the envelope
	FailureEmpty        FailureKind = "empty"         // envelope valid but no text
	FailureLoading      FailureKind = "loading"       // model is warming up
	FailureMissingKey   FailureKind = "missing_key"   // credential not configured
	FailureProcess      FailureKind = "process"       // local process exited non-zero
	FailureNotInstalled FailureKind = "not_installed" // local binary missing
	FailureNoResults    FailureKind = "no_results"    // search returned nothing
	FailureUnavailable  FailureKind = "unavailable"   // circuit breaker open
)

// ProviderError is a failed backend call.
type ProviderError struct {
	// Provider is the backend name (groq, huggingface, ...).
	Provider string
	// Label is the upper-case name used in failure tags (GROQ, MISTRAL, ...).
	Label   string
	Kind    FailureKind
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	sb.WriteString(": ")
	sb.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&sb, " %d", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Tag renders the bracketed marker prepended to the fallback prompt,
// e.g. "[GEMINI HTTP 500]".
func (e *ProviderError) Tag() string {
	switch e.Kind {
	case FailureHTTP:
		return fmt.Sprintf("[%s HTTP %d]", e.Label, e.Status)
	case FailureLoading:
		return fmt.Sprintf("[%s CARGANDO]", e.Label)
	case FailureMissingKey:
		return fmt.Sprintf("[%s SIN KEY]", e.Label)
	case FailureUnparseable, FailureEmpty:
		return fmt.Sprintf("[%s SIN RESPUESTA]", e.Label)
	case FailureNoResults:
		return fmt.Sprintf("[%s SIN RESULTADOS]", e.Label)
	case FailureNotInstalled:
		return fmt.Sprintf("[%s NO INSTALADO]", e.Label)
	case FailureProcess:
		return fmt.Sprintf("[%s ERROR: %s]", e.Label, e.detail())
	default:
		return fmt.Sprintf("[%s ERROR]", e.Label)
	}
}

// TerminalText is what the user sees when this was the last backend in
// the chain: "[GROQ ERROR 500]" or "[GROQ FALLÓ: ...]".
func (e *ProviderError) TerminalText() string {
	if e.Kind == FailureHTTP {
		return fmt.Sprintf("[%s ERROR %d]", e.Label, e.Status)
	}
	return fmt.Sprintf("[%s FALLÓ: %s]", e.Label, e.detail())
}

func (e *ProviderError) detail() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// Fail builds a ProviderError that carries an underlying error.
func Fail(provider, label string, kind FailureKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Label: label, Kind: kind, Err: err}
}

// HTTPFail builds a ProviderError for a non-2xx response.
func HTTPFail(provider, label string, status int, body string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Label:    label,
		Kind:     FailureHTTP,
		Status:   status,
		Message:  truncate(strings.TrimSpace(body), 200),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
