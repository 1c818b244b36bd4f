// Package server exposes the memory engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reverie-ai/reverie/internal/characters"
	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/service"
)

// Server routes API requests to the ingestion and retrieval services.
type Server struct {
	ingest    *service.IngestService
	retrieval *service.RetrievalService
	source    characters.Source
	jobs      *service.JobManager
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a Server. A nil logger falls back to slog.Default.
func New(
	ingest *service.IngestService,
	retrieval *service.RetrievalService,
	source characters.Source,
	jobs *service.JobManager,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ingest:    ingest,
		retrieval: retrieval,
		source:    source,
		jobs:      jobs,
		collector: collector,
		logger:    logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngestAll)
		r.Get("/characters", s.handleListCharacters)
		r.Route("/characters/{id}", func(r chi.Router) {
			r.Post("/ingest", s.handleIngestCharacter)
			r.Post("/context", s.handleContext)
			r.Post("/memories", s.handleRecordMemory)
		})
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/events", s.handleJobEvents)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

type contextRequest struct {
	Message string               `json:"message"`
	Options *models.QueryOptions `json:"options,omitempty"`
}

type memoryRequest struct {
	Content         string            `json:"content"`
	EmotionalWeight *float64          `json:"emotional_weight,omitempty"`
	Importance      models.Importance `json:"importance,omitempty"`
}

type characterSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type healthResponse struct {
	Healthy    bool                      `json:"healthy"`
	Components []service.ComponentHealth `json:"components"`
}

func (s *Server) handleIngestCharacter(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "id")

	job, err := s.ingest.IngestAsync(r.Context(), s.jobs, characterID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleIngestAll(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingest.IngestAllAsync(r.Context(), s.jobs)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "id")

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	rc, err := s.retrieval.GetContext(r.Context(), characterID, req.Message, req.Options)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleRecordMemory(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "id")

	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	meta := models.MemoryMeta{
		EmotionalWeight: req.EmotionalWeight,
		Importance:      req.Importance,
	}
	if err := s.retrieval.RecordConversationMemory(r.Context(), characterID, req.Content, meta); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	chars, err := s.source.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]characterSummary, 0, len(chars))
	for _, ch := range chars {
		out = append(out, characterSummary{ID: ch.ID, Name: ch.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.ListJobs()

	out := make([]service.Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.ingest.Health(r.Context())

	resp := healthResponse{Healthy: service.AllHealthy(checks), Components: checks}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func statusFor(err error) int {
	if errors.Is(err, characters.ErrCharacterNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		// Headers are gone already, so a failed encode can only be logged.
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
