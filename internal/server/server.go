// Package server exposes the Orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/agent"
	"github.com/grind-ai/grind/internal/model"
	"github.com/grind-ai/grind/internal/stats"
	"github.com/grind-ai/grind/internal/usage"
)

// Processor answers chat messages. *agent.Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, input string) *agent.Response
}

// BackendLister reports configured backends. *model.Router implements it.
type BackendLister interface {
	Status() []model.BackendStatus
}

// Config configures the Server.
type Config struct {
	Processor Processor
	Backends  BackendLister
	Stats     *stats.Collector
	Usage     *usage.Tracker
	DBPath    string
	Version   string
	Logger    *zap.Logger
}

// Server is the GRIND HTTP API server.
type Server struct {
	processor Processor
	backends  BackendLister
	stats     *stats.Collector
	usage     *usage.Tracker
	dbPath    string
	version   string
	logger    *zap.Logger
	router    chi.Router
}

// New creates a new Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	s := &Server{
		processor: cfg.Processor,
		backends:  cfg.Backends,
		stats:     collector,
		usage:     cfg.Usage,
		dbPath:    cfg.DBPath,
		version:   cfg.Version,
		logger:    logger.Named("server"),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.stats.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/status", s.handleStatus)
	})

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
