// Package persona rewrites raw answers in GRIND's Jarvis-style voice.
package persona

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/model"
	"github.com/grind-ai/grind/internal/prompt"
)

// Tone is the register the persona answers in.
type Tone string

const (
	ToneHumor   Tone = "humor"
	ToneSerious Tone = "serio"
	ToneElegant Tone = "elegante"
)

var (
	humorMarkers   = []string{"jaja", "xd", "lol", "divertido", "chiste"}
	urgencyMarkers = []string{"urgente", "ahora", "rápido", "importante"}

	// Matches chain failure text such as "[GROQ ERROR 500]" or
	// "[PHI-3 FALLÓ: timeout]".
	errorTag = regexp.MustCompile(`\[[A-ZÁÉÍÓÚÑ0-9 _-]+ (ERROR|FALLÓ)[^\]]*\]`)
)

// DetectTone picks a tone from the user's words. Humor wins over urgency.
func DetectTone(input string) Tone {
	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, humorMarkers):
		return ToneHumor
	case containsAny(lower, urgencyMarkers):
		return ToneSerious
	default:
		return ToneElegant
	}
}

// IsErrorText reports whether raw is a failure report rather than an answer.
func IsErrorText(raw string) bool {
	return strings.Contains(raw, "[ERROR]") ||
		strings.Contains(raw, "[FALLÓ]") ||
		errorTag.MatchString(raw)
}

// Composer asks the primary backend to restyle answers.
type Composer struct {
	primary model.Backend
	prompts *prompt.Builder
	logger  *zap.Logger
}

// NewComposer creates a composer on primary.
func NewComposer(primary model.Backend, prompts *prompt.Builder, logger *zap.Logger) *Composer {
	if prompts == nil {
		prompts = prompt.NewBuilder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		primary: primary,
		prompts: prompts,
		logger:  logger.Named("persona"),
	}
}

// Compose returns raw rewritten in the persona voice. Failure reports,
// backend errors and empty rewrites all yield raw unchanged.
func (c *Composer) Compose(ctx context.Context, input, raw, title string) string {
	if IsErrorText(raw) {
		return raw
	}

	tone := DetectTone(input)
	req := &model.Request{
		Prompt: c.prompts.BuildPersonaPrompt(prompt.PersonaContext{
			Title:    title,
			Tone:     string(tone),
			Question: input,
			Raw:      raw,
		}),
		Query: input,
	}

	start := time.Now()
	resp, err := c.primary.Generate(ctx, req)
	if err != nil || resp == nil {
		c.logger.Warn("persona rewrite failed, keeping raw answer",
			zap.String("backend", c.primary.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return raw
	}

	text := resp.Text
	if i := strings.Index(text, prompt.PersonaMarker); i >= 0 {
		text = text[i+len(prompt.PersonaMarker):]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.logger.Warn("persona rewrite empty, keeping raw answer")
		return raw
	}

	c.logger.Debug("persona applied", zap.String("tone", string(tone)), zap.Duration("elapsed", time.Since(start)))
	return text
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
