package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket progress stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Job API
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)  // GET (list), POST (submit)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // GET /{id}, GET /{id}/report

	// Health and version
	mux.HandleFunc("/api/status", s.statusHandler)

	return mux
}

// handleJobsRoute routes the job collection endpoint by method
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.JobHandler.SubmitJobHandler(w, r)
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and /api/jobs/{id}/report
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/report") {
		s.app.JobHandler.ReportHandler(w, r)
		return
	}
	s.app.JobHandler.GetJobHandler(w, r)
}

// statusHandler reports service health and version
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}
