package model

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/grind-ai/grind/internal/config"
)

// answerMarker ends the wrapper prompt; the model's answer follows it.
const answerMarker = "Respuesta:"

// OllamaProcess runs a small local model through the ollama CLI. It
// serves prose and explanation requests.
type OllamaProcess struct {
	cfg      config.OllamaConfig
	endpoint Endpoint
}

// NewOllamaProcess creates the local prose backend.
func NewOllamaProcess(cfg config.OllamaConfig) *OllamaProcess {
	return &OllamaProcess{
		cfg:      cfg,
		endpoint: Endpoint{Provider: "ollama", Label: "PHI-3"},
	}
}

// Generate runs `ollama run <model>` with the wrapped prompt on stdin.
func (o *OllamaProcess) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	ctx, cancel := WithTimeout(ctx, o.cfg.Timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, o.cfg.Binary, "run", o.cfg.Model)
	cmd.Stdin = strings.NewReader(wrapPrompt(req.Prompt))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, Fail(o.Name(), "OLLAMA", FailureNotInstalled, err)
		}
		if ctx.Err() != nil {
			return nil, o.endpoint.Fail(FailureNetwork, ctx.Err())
		}
		pe := o.endpoint.Fail(FailureProcess, nil)
		pe.Message = strings.TrimSpace(stderr.String())
		if pe.Message == "" {
			pe.Message = err.Error()
		}
		return nil, pe
	}

	text := extractAnswer(stdout.String())
	if text == "" {
		return nil, o.endpoint.Fail(FailureEmpty, nil)
	}

	return &Response{
		Text:       text,
		Backend:    o.Name(),
		Model:      o.cfg.Model,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func wrapPrompt(prompt string) string {
	return "Actúa como un asistente útil, claro y conciso. Responde directamente sin rodeos.\n" +
		"Pregunta: " + prompt + "\n" +
		answerMarker + "\n"
}

// extractAnswer drops any echo of the wrapper prompt.
func extractAnswer(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.LastIndex(out, answerMarker); i >= 0 {
		out = strings.TrimSpace(out[i+len(answerMarker):])
	}
	return out
}

// IsAvailable reports whether the ollama binary is on PATH.
func (o *OllamaProcess) IsAvailable() bool {
	if o == nil {
		return false
	}
	_, err := exec.LookPath(o.cfg.Binary)
	return err == nil
}

// Name returns the backend name.
func (o *OllamaProcess) Name() string {
	return o.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (o *OllamaProcess) Label() string {
	return o.endpoint.Label
}
