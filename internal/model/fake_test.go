package model

import (
	"context"
	"sync"
)

// fakeBackend answers with text or fails with err, recording prompts.
type fakeBackend struct {
	name  string
	label string
	text  string
	err   error
	down  bool

	mu      sync.Mutex
	prompts []string
}

func (f *fakeBackend) Generate(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Backend: f.name}, nil
}

func (f *fakeBackend) IsAvailable() bool { return !f.down }
func (f *fakeBackend) Name() string      { return f.name }
func (f *fakeBackend) Label() string     { return f.label }

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}
