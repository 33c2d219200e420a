// Package errors provides the error types shared by GRIND components.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for handling decisions.
type Category int

const (
	// CategoryTemporary errors may succeed on a later message (network, timeouts)
	CategoryTemporary Category = iota

	// CategoryPermanent errors will not succeed without a change (bad response, missing key)
	CategoryPermanent

	// CategoryUser errors are due to user input
	CategoryUser

	// CategorySystem errors are local system failures (disk, database, process)
	CategorySystem

	// CategoryRateLimit errors are due to API rate limiting
	CategoryRateLimit
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTemporary:
		return "temporary"
	case CategoryPermanent:
		return "permanent"
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	case CategoryRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// ============================================================
// AppError - Main Error Type
// ============================================================

// AppError is the main error type for store, config and transport failures.
type AppError struct {
	// Code is a unique error code for programmatic handling
	Code string

	// Message is a user-friendly error message
	Message string

	// Category determines how the error should be handled
	Category Category

	// Inner is the underlying error
	Inner error

	// Retryable indicates if the operation can be retried
	Retryable bool

	// Suggestions are recovery hints printed by the CLI
	Suggestions []string

	// Context is additional debugging information
	Context map[string]any

	// RetryAfter is the suggested delay before retry
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// Is reports whether target has the same code, or is contained in Inner.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) && other.Code != "" {
		return other.Code == e.Code
	}
	return errors.Is(e.Inner, target)
}

// ============================================================
// Error Constructors
// ============================================================

// New creates a new AppError.
func New(code, message string, category Category) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:        code,
			Message:     message,
			Category:    category,
			Inner:       appErr,
			Retryable:   appErr.Retryable,
			Suggestions: appErr.Suggestions,
			Context:     appErr.Context,
		}
	}

	return &AppError{
		Code:      code,
		Message:   message,
		Category:  category,
		Inner:     err,
		Retryable: category == CategoryTemporary || category == CategoryRateLimit,
	}
}

// Store wraps a database failure.
func Store(err error, code, message string) *AppError {
	return Wrap(err, code, message, CategorySystem)
}

// MissingCredential reports a required credential that is not configured.
func MissingCredential(name string) *AppError {
	return NewBuilder(CodeConfigMissingCredential, name+" is not set").
		Permanent().
		WithContext("credential", name).
		WithSuggestion(fmt.Sprintf("export %s=... or set it in config.toml", name)).
		Build()
}

// ============================================================
// Builder Pattern for Fluent Error Construction
// ============================================================

// Builder provides fluent error construction.
type Builder struct {
	err *AppError
}

// NewBuilder starts building a new error.
func NewBuilder(code, message string) *Builder {
	return &Builder{
		err: &AppError{
			Code:     code,
			Message:  message,
			Category: CategoryTemporary,
			Context:  make(map[string]any),
		},
	}
}

// Temporary marks the error as temporary/retryable.
func (b *Builder) Temporary() *Builder {
	b.err.Category = CategoryTemporary
	b.err.Retryable = true
	return b
}

// Permanent marks the error as permanent/non-retryable.
func (b *Builder) Permanent() *Builder {
	b.err.Category = CategoryPermanent
	b.err.Retryable = false
	return b
}

// System marks the error as a system error.
func (b *Builder) System() *Builder {
	b.err.Category = CategorySystem
	b.err.Retryable = false
	return b
}

// RateLimit marks the error as rate limited.
func (b *Builder) RateLimit(after time.Duration) *Builder {
	b.err.Category = CategoryRateLimit
	b.err.Retryable = true
	b.err.RetryAfter = after
	return b
}

// Wrap sets the underlying error.
func (b *Builder) Wrap(err error) *Builder {
	b.err.Inner = err
	return b
}

// WithSuggestion adds a recovery suggestion.
func (b *Builder) WithSuggestion(suggestion string) *Builder {
	b.err.Suggestions = append(b.err.Suggestions, suggestion)
	return b
}

// WithContext adds context information.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.err.Context[key] = value
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *AppError {
	return b.err
}

// ============================================================
// Error Codes
// ============================================================

const (
	// Store errors
	CodeStoreOpen       = "STORE_OPEN_FAILED"
	CodeStoreWrite      = "STORE_WRITE_FAILED"
	CodeStoreRead       = "STORE_READ_FAILED"
	CodeStoreMigration  = "STORE_MIGRATION_FAILED"
	CodeEmbeddingFailed = "EMBEDDING_FAILED"

	// Config errors
	CodeConfigInvalid           = "CONFIG_INVALID"
	CodeConfigMissingCredential = "CONFIG_MISSING_CREDENTIAL"

	// Transport errors
	CodeTransportPoll = "TRANSPORT_POLL_FAILED"
	CodeTransportSend = "TRANSPORT_SEND_FAILED"

	// Mirror errors
	CodeMirrorFailed = "MIRROR_FAILED"

	// Circuit breaker
	CodeCircuitOpen = "CIRCUIT_OPEN"
)

// ============================================================
// Helpers
// ============================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCategory extracts the category from an error.
// Returns CategoryTemporary for non-AppError errors.
func GetCategory(err error) Category {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	return CategoryTemporary
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// FormatUserMessage formats a user-friendly error message with suggestions.
func FormatUserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(appErr.Message)
	if len(appErr.Suggestions) > 0 {
		sb.WriteString("\n\nSuggestions:")
		for _, s := range appErr.Suggestions {
			sb.WriteString("\n  • ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}
