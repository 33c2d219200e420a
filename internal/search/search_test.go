package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/model"
)

func searchConfig(serpURL, ddgURL, key string) config.SearchConfig {
	return config.SearchConfig{
		SerpAPI:    config.ProviderConfig{APIKey: key, BaseURL: serpURL, TimeoutSeconds: 5},
		DuckDuckGo: config.ProviderConfig{BaseURL: ddgURL, TimeoutSeconds: 5},
		Country:    "es",
		Language:   "es",
	}
}

func serve(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSerpAPIFirstOrganicResult(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "qué es un quasar", q.Get("q"))
		assert.Equal(t, "serp-key", q.Get("api_key"))
		assert.Equal(t, "es", q.Get("gl"))
		assert.Equal(t, "es", q.Get("hl"))
	}, `{"organic_results":[
		{"position":1,"title":"Quásar - Wikipedia","link":"https://es.wikipedia.org/wiki/Quásar","snippet":"Un quásar es un núcleo galáctico activo."},
		{"position":2,"title":"otro","link":"https://example.com","snippet":"no"}
	]}`)

	s := NewSerpAPI(searchConfig(srv.URL, "", "serp-key"))
	resp, err := s.Generate(context.Background(), &model.Request{
		Prompt: "[SYSTEM PROMPT] Pregunta: qué es un quasar",
		Query:  "qué es un quasar",
	})
	require.NoError(t, err)
	assert.Equal(t, "Un quásar es un núcleo galáctico activo.\n[Fuente: Quásar - Wikipedia](https://es.wikipedia.org/wiki/Quásar)", resp.Text)
	assert.Equal(t, "serpapi", resp.Backend)
}

func TestSerpAPIMissingFields(t *testing.T) {
	srv := serve(t, nil, `{"organic_results":[{"link":"https://x.dev"}]}`)

	resp, err := NewSerpAPI(searchConfig(srv.URL, "", "k")).Generate(context.Background(), &model.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Sin resumen\n[Fuente: Sin título](https://x.dev)", resp.Text)
}

func TestSerpAPIFailures(t *testing.T) {
	_, err := NewSerpAPI(searchConfig("http://127.0.0.1:1", "", "")).Generate(context.Background(), &model.Request{Prompt: "x"})
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.FailureMissingKey, pe.Kind)

	srv := serve(t, nil, `{"organic_results":[]}`)
	_, err = NewSerpAPI(searchConfig(srv.URL, "", "k")).Generate(context.Background(), &model.Request{Prompt: "x"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "[SERPAPI SIN RESULTADOS]", pe.Tag())

	srv = serve(t, nil, `{"error":"Invalid API key."}`)
	_, err = NewSerpAPI(searchConfig(srv.URL, "", "k")).Generate(context.Background(), &model.Request{Prompt: "x"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Invalid API key.", pe.Message)
}

func TestDuckDuckGoAbstractText(t *testing.T) {
	srv := serve(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "golang", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("no_redirect"))
	}, `{"AbstractText":"Go is a programming language.","RelatedTopics":[{"Text":"ignored"}]}`)

	resp, err := NewDuckDuckGo(searchConfig("", srv.URL, "")).Generate(context.Background(), &model.Request{Prompt: "golang"})
	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language.", resp.Text)
}

func TestDuckDuckGoAbstractHTML(t *testing.T) {
	srv := serve(t, nil, `{"Abstract":"<b>Go</b> is a language by <a href=\"https://go.dev\">Google</a>."}`)

	resp, err := NewDuckDuckGo(searchConfig("", srv.URL, "")).Generate(context.Background(), &model.Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "**Go** is a language by [Google](https://go.dev).", resp.Text)
}

func TestDuckDuckGoRelatedTopicTruncated(t *testing.T) {
	long := strings.Repeat("á", 600)
	srv := serve(t, nil, `{"AbstractText":"","RelatedTopics":[{"Name":"Grupo","Topics":[{"Text":"`+long+`"}]}]}`)

	resp, err := NewDuckDuckGo(searchConfig("", srv.URL, "")).Generate(context.Background(), &model.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("á", 500)+"...", resp.Text)
}

func TestDuckDuckGoRelatedTopicFromResultHTML(t *testing.T) {
	srv := serve(t, nil, `{"RelatedTopics":[{"Text":"","Result":"<a href=\"https://duckduckgo.com/Marte\">Marte</a> El cuarto planeta."}]}`)

	resp, err := NewDuckDuckGo(searchConfig("", srv.URL, "")).Generate(context.Background(), &model.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[Marte](https://duckduckgo.com/Marte) El cuarto planeta.", resp.Text)
}

func TestDuckDuckGoNoResults(t *testing.T) {
	srv := serve(t, nil, `{"AbstractText":"","RelatedTopics":[]}`)

	_, err := NewDuckDuckGo(searchConfig("", srv.URL, "")).Generate(context.Background(), &model.Request{Prompt: "x"})
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "[DUCKDUCKGO SIN RESULTADOS]", pe.Tag())
}

func TestSearchChainFallsThroughToPrimary(t *testing.T) {
	ddg := serve(t, nil, `{}`)
	primary := &stubBackend{text: "lo que sé de memoria"}

	chain := model.NewChain(nil, nil, nil)
	res := chain.Run(context.Background(),
		&model.Request{Prompt: "busca algo", Query: "algo"},
		[]model.Backend{NewSerpAPI(searchConfig("", ddg.URL, "")), NewDuckDuckGo(searchConfig("", ddg.URL, "")), primary},
	)

	assert.Equal(t, "lo que sé de memoria", res.Text)
	assert.Equal(t, "[DUCKDUCKGO SIN RESULTADOS] busca algo", primary.prompt)
}

type stubBackend struct {
	text   string
	prompt string
}

func (s *stubBackend) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	s.prompt = req.Prompt
	return &model.Response{Text: s.text}, nil
}
func (s *stubBackend) IsAvailable() bool { return true }
func (s *stubBackend) Name() string      { return "groq" }
