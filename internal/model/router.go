package model

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// RouteRule sends messages containing any of Keywords to Kind.
type RouteRule struct {
	Kind     Kind
	Keywords []string
}

// DefaultRules is the keyword table in priority order: the first rule
// with a matching keyword wins.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{KindLogic, []string{"código", "debug", "python", "javascript", "lógica", "matemática", "ecuación", "algoritmo"}},
		{KindProse, []string{"redacta", "ensayo", "estilo", "elegante", "motiva", "inspira", "emocional", "explica", "enseña", "describe", "resumen creativo"}},
		{KindLongContext, []string{"rápido", "resumen", "documento largo", "velocidad", "extenso", "analiza este texto"}},
		{KindSearch, []string{"busca", "investiga", "qué es", "define", "noticia", "fuente", "actualidad", "información sobre"}},
	}
}

// Router picks a backend chain for each message by keyword.
type Router struct {
	rules  []RouteRule
	chains map[Kind][]Backend
	runner *Chain
	logger *zap.Logger
}

// NewRouter creates a router with the default keyword table.
// primary answers KindDefault and ends every other chain.
func NewRouter(runner *Chain, primary Backend, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		rules:  DefaultRules(),
		chains: map[Kind][]Backend{KindDefault: {primary}},
		runner: runner,
		logger: logger.Named("router"),
	}
}

// SetChain sets the backends tried, in order, for kind. The primary
// backend is appended as the final stage.
func (r *Router) SetChain(kind Kind, stages ...Backend) {
	chain := make([]Backend, 0, len(stages)+1)
	chain = append(chain, stages...)
	chain = append(chain, r.chains[KindDefault]...)
	r.chains[kind] = chain
}

// Route classifies input. It never fails: no match means KindDefault.
func (r *Router) Route(input string) RoutingDecision {
	lower := strings.ToLower(input)

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				d := RoutingDecision{Kind: rule.Kind, Keyword: kw, Reason: "keyword " + kw}
				r.logger.Info("route selected", zap.String("kind", string(d.Kind)), zap.String("keyword", kw))
				return d
			}
		}
	}

	d := RoutingDecision{Kind: KindDefault, Reason: "no keyword matched"}
	r.logger.Info("route selected", zap.String("kind", string(d.Kind)))
	return d
}

// Plan returns the chain for kind.
func (r *Router) Plan(kind Kind) []Backend {
	if chain, ok := r.chains[kind]; ok {
		return chain
	}
	return r.chains[KindDefault]
}

// Generate routes on input and runs the chosen chain with prompt.
// The result always carries text.
func (r *Router) Generate(ctx context.Context, input, prompt string) (RoutingDecision, Result) {
	decision := r.Route(input)
	result := r.runner.Run(ctx, &Request{Prompt: prompt, Query: input}, r.Plan(decision.Kind))
	return decision, result
}

// Status returns every distinct backend the router knows about.
func (r *Router) Status() []BackendStatus {
	seen := make(map[string]bool)
	var out []BackendStatus
	for _, kind := range []Kind{KindDefault, KindLogic, KindProse, KindLongContext, KindSearch} {
		for _, b := range r.chains[kind] {
			if b == nil || seen[b.Name()] {
				continue
			}
			seen[b.Name()] = true
			out = append(out, BackendStatus{
				Name:      b.Name(),
				Available: b.IsAvailable(),
				Breaker:   r.runner.BreakerState(b.Name()).String(),
			})
		}
	}
	return out
}
