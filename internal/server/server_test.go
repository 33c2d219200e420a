package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grind-ai/grind/internal/agent"
	"github.com/grind-ai/grind/internal/model"
	"github.com/grind-ai/grind/internal/stats"
	"github.com/grind-ai/grind/internal/usage"
)

type stubProcessor struct {
	inputs []string
}

func (s *stubProcessor) Process(ctx context.Context, input string) *agent.Response {
	s.inputs = append(s.inputs, input)
	return &agent.Response{Message: "De inmediato, jefe.", Backend: "groq", DurationMs: 3}
}

type stubBackends []model.BackendStatus

func (s stubBackends) Status() []model.BackendStatus { return s }

func testServer(t *testing.T) (*Server, *stubProcessor, *stats.Collector) {
	t.Helper()
	proc := &stubProcessor{}
	collector := stats.NewCollector()
	tracker := usage.NewTracker()
	tracker.Record("groq", 12)
	srv := New(Config{
		Processor: proc,
		Backends: stubBackends{
			{Name: "groq", Available: true, Breaker: "closed"},
			{Name: "serpapi", Available: false, Breaker: "closed"},
		},
		Stats:   collector,
		Usage:   tracker,
		Version: "test-version",
	})
	return srv, proc, collector
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, collector := testServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])

	uptime, ok := body["uptime"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, uptime, 0.0)
	assert.LessOrEqual(t, uptime, time.Since(collector.StartTime()).Seconds())
}

func TestNewDefaultsCollector(t *testing.T) {
	srv := New(Config{Processor: &stubProcessor{}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grind_requests_total 0")

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status agent.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.Stats)
	assert.Zero(t, status.Stats.RequestCount)
}

func TestChatEndpoint(t *testing.T) {
	srv, proc, _ := testServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hola"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "De inmediato, jefe.", body["response"])
	assert.Equal(t, "groq", body["backend"])
	assert.Equal(t, []string{"hola"}, proc.inputs)
}

func TestChatRejectsBadRequests(t *testing.T) {
	srv, proc, _ := testServer(t)

	bodies := []string{`not json`, `{}`, `{"message":"   "}`}
	for _, b := range bodies {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest("POST", "/api/chat", strings.NewReader(b)))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", b)
	}
	assert.Empty(t, proc.inputs)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, collector := testServer(t)
	collector.RecordRequest(10 * time.Millisecond)
	collector.RecordRoute("search")

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status agent.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Len(t, status.Backends, 2)
	assert.Equal(t, "groq", status.Backends[0].Name)
	assert.False(t, status.Backends[1].Available)
	require.NotNil(t, status.Stats)
	assert.Equal(t, int64(1), status.Stats.RequestCount)
	assert.Equal(t, int64(1), status.Stats.Routes["search"])
	require.NotNil(t, status.Usage)
	assert.Equal(t, 12, status.Usage.Daily.HostedTokens)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, collector := testServer(t)
	collector.RecordError()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grind_errors_total 1")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv, _, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
