package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenAIEngineRequiresKey(t *testing.T) {
	_, err := NewGenAIEngine(context.Background(), Config{})
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "text-embedding-004"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e, err := NewGenAIEngine(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", e.Model())

	vec, err := e.Embed(context.Background(), "hola")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, vec, 1e-6)
}

func TestEmbedEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	e, err := NewGenAIEngine(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hola")
	assert.Error(t, err)
}
