package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/grind-ai/grind/internal/agent"
	"github.com/grind-ai/grind/internal/model"
)

// maxChatBytes bounds a chat request body.
const maxChatBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.stats.StartTime()).Seconds(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}

	writeJSON(w, http.StatusOK, s.processor.Process(r.Context(), req.Message))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := agent.Status{}
	if s.backends != nil {
		status.Backends = s.backends.Status()
	}
	if status.Backends == nil {
		status.Backends = []model.BackendStatus{}
	}
	status.Stats = agent.GetStats(s.stats, s.dbPath)
	if s.usage != nil {
		status.Usage = s.usage.Report()
	}
	writeJSON(w, http.StatusOK, status)
}
