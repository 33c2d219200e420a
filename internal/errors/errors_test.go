package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	inner := fmt.Errorf("disk I/O error")
	err := Store(inner, CodeStoreWrite, "save reminder")

	assert.Equal(t, "[STORE_WRITE_FAILED] save reminder: disk I/O error", err.Error())
	assert.Equal(t, CategorySystem, GetCategory(err))
	assert.True(t, stderrors.Is(err, inner))
	assert.True(t, HasCode(fmt.Errorf("outer: %w", err), CodeStoreWrite))
	assert.False(t, HasCode(err, CodeStoreRead))
}

func TestMissingCredential(t *testing.T) {
	err := MissingCredential("GROQ_API_KEY")

	assert.Equal(t, CodeConfigMissingCredential, err.Code)
	assert.Equal(t, CategoryPermanent, err.Category)
	assert.Contains(t, FormatUserMessage(err), "export GROQ_API_KEY=")
	assert.True(t, stderrors.Is(err, New(CodeConfigMissingCredential, "", CategoryPermanent)))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("groq", &CircuitBreakerConfig{
		MaxFailures:      2,
		ResetTimeout:     time.Minute,
		HalfOpenAttempts: 1,
		Now:              func() time.Time { return now },
	})

	boom := fmt.Errorf("boom")
	calls := 0
	fail := func() error { calls++; return boom }

	require.ErrorIs(t, cb.Execute(fail), boom)
	require.ErrorIs(t, cb.Execute(fail), boom)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(fail)
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeCircuitOpen))
	assert.Equal(t, 2, calls, "open breaker must not call fn")

	now = now.Add(2 * time.Minute)
	got, err := ExecuteWithResult(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("gemini", &CircuitBreakerConfig{
		MaxFailures:      1,
		ResetTimeout:     time.Second,
		HalfOpenAttempts: 1,
		Now:              func() time.Time { return now },
	})

	_ = cb.Execute(func() error { return fmt.Errorf("x") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return fmt.Errorf("still down") })
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.True(t, HasCode(err, CodeCircuitOpen), "reopened breaker waits a full reset timeout")
}
