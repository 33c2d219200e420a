package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/errors"
)

// Attempt records one stage of a chain run.
type Attempt struct {
	Backend  string
	Err      *ProviderError // nil on success
	Duration time.Duration
}

// Result is the outcome of a chain run. Text is never empty.
type Result struct {
	Text       string
	Backend    string // backend that produced Text, "" if every stage failed
	TokensUsed int
	Attempts   []Attempt
}

// Failed reports whether no stage produced an answer.
func (r Result) Failed() bool {
	return r.Backend == ""
}

// Observer is notified of every stage attempt.
type Observer interface {
	ObserveAttempt(backend string, err error, d time.Duration)
}

// Chain runs backends in order until one answers. Each backend sits
// behind its own circuit breaker.
type Chain struct {
	breakerCfg *errors.CircuitBreakerConfig
	logger     *zap.Logger
	observer   Observer

	mu       sync.Mutex
	breakers map[string]*errors.CircuitBreaker
}

// NewChain creates a chain runner. observer may be nil.
func NewChain(breakerCfg *errors.CircuitBreakerConfig, observer Observer, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		breakerCfg: breakerCfg,
		logger:     logger.Named("chain"),
		observer:   observer,
		breakers:   make(map[string]*errors.CircuitBreaker),
	}
}

// Run tries each stage. A failed stage's tag is prepended to the prompt
// handed to the next stage. When the last stage fails, its terminal
// text ("[GROQ ERROR 500]") is returned as the answer.
func (c *Chain) Run(ctx context.Context, req *Request, stages []Backend) Result {
	var result Result
	if len(stages) == 0 {
		result.Text = "[GRIND FALLÓ: sin backend configurado]"
		return result
	}

	prompt := req.Prompt
	var last *ProviderError

	for i, stage := range stages {
		stageReq := *req
		stageReq.Prompt = prompt

		call := func() (*Response, error) {
			resp, err := stage.Generate(ctx, &stageReq)
			if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
				err = Fail(stage.Name(), labelOf(stage), FailureEmpty, nil)
			}
			return resp, err
		}

		start := time.Now()
		var resp *Response
		var err error
		if stage.IsAvailable() {
			resp, err = errors.ExecuteWithResult(c.breaker(stage.Name()), call)
		} else {
			// Unconfigured backends fail fast with their own tag and
			// must not trip the breaker.
			resp, err = call()
		}
		elapsed := time.Since(start)

		if c.observer != nil {
			c.observer.ObserveAttempt(stage.Name(), err, elapsed)
		}

		if err == nil {
			result.Attempts = append(result.Attempts, Attempt{Backend: stage.Name(), Duration: elapsed})
			result.Text = resp.Text
			result.Backend = stage.Name()
			result.TokensUsed = resp.TokensUsed
			return result
		}

		last = asProviderError(stage, err)
		result.Attempts = append(result.Attempts, Attempt{Backend: stage.Name(), Err: last, Duration: elapsed})

		fields := []zap.Field{
			zap.String("backend", stage.Name()),
			zap.String("kind", string(last.Kind)),
			zap.Int("status", last.Status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		}
		if i+1 < len(stages) {
			c.logger.Warn("backend failed, falling back", append(fields, zap.String("next", stages[i+1].Name()))...)
			prompt = last.Tag() + " " + req.Prompt
		} else {
			c.logger.Error("all backends failed", fields...)
		}
	}

	result.Text = last.TerminalText()
	return result
}

// BreakerState returns the breaker state for a backend.
func (c *Chain) BreakerState(name string) errors.State {
	return c.breaker(name).State()
}

func (c *Chain) breaker(name string) *errors.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[name]
	if !ok {
		cb = errors.NewCircuitBreaker(name, c.breakerCfg)
		c.breakers[name] = cb
	}
	return cb
}

func asProviderError(stage Backend, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.HasCode(err, errors.CodeCircuitOpen) {
		return Fail(stage.Name(), labelOf(stage), FailureUnavailable, err)
	}
	return Fail(stage.Name(), labelOf(stage), FailureNetwork, err)
}

func labelOf(b Backend) string {
	if l, ok := b.(interface{ Label() string }); ok {
		return l.Label()
	}
	return strings.ToUpper(b.Name())
}
