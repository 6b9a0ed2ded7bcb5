// Package api provides the HTTP server: programming run submission, job
// inspection and cancellation, stored results with CSV export, and the
// streaming job event feed over SSE and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/airgrid-tv/airgrid/internal/app/jobs"
	"github.com/airgrid-tv/airgrid/internal/app/report"
	"github.com/airgrid-tv/airgrid/internal/app/runner"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// Server is the airgrid HTTP API server.
type Server struct {
	runner      *runner.Service
	coordinator *jobs.Coordinator
	history     domain.HistoryStore

	keepalive time.Duration
	log       zerolog.Logger
}

// NewServer creates the API server. history may be nil when persistence
// is disabled.
func NewServer(run *runner.Service, coordinator *jobs.Coordinator, history domain.HistoryStore, keepalive time.Duration, log zerolog.Logger) *Server {
	if keepalive <= 0 || keepalive > 30*time.Second {
		keepalive = 25 * time.Second
	}
	return &Server{
		runner:      run,
		coordinator: coordinator,
		history:     history,
		keepalive:   keepalive,
		log:         log,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/programming/run", s.handleProgrammingRun)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/stream", s.handleJobsSSE)
			r.Get("/ws", s.handleJobsWS)
			r.Post("/clear", s.handleClearJobs)
			r.Get("/{id}", s.handleGetJob)
			r.Post("/{id}/cancel", s.handleCancelJob)
		})

		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.handleListResults)
			r.Get("/{id}", s.handleGetResult)
			r.Delete("/{id}", s.handleDeleteResult)
			r.Get("/{id}/export/csv", s.handleExportCSV)
		})
	})

	return r
}

// ─── Programming Runs ───────────────────────────────────────────────────────

func (s *Server) handleProgrammingRun(w http.ResponseWriter, r *http.Request) {
	var req domain.ProgrammingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobID, err := s.runner.StartProgramming(req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest),
			errors.Is(err, domain.ErrProfileNotFound),
			errors.Is(err, domain.ErrMalformedProfile):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrCatalogUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if r.URL.Query().Get("active") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": s.coordinator.ListActive()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.coordinator.ListRecent(limit)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.coordinator.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.coordinator.Cancel(id) {
		writeError(w, http.StatusConflict, "job is not pending or running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	removed := s.coordinator.ClearTerminal()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ─── Results ────────────────────────────────────────────────────────────────

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	results, err := s.history.ListResults(r.Context(), r.URL.Query().Get("channel"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	result, err := s.history.GetResult(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	err := s.history.DeleteResult(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	id := chi.URLParam(r, "id")
	result, err := s.history.GetResult(r.Context(), id)
	if errors.Is(err, domain.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="scoring-`+id+`.csv"`)
	if err := report.WriteScoringCSV(w, result.Programs); err != nil {
		s.log.Error().Err(err).Str("result", id).Msg("csv export failed")
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
