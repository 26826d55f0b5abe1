// Package http exposes the workflow engine over HTTP: session CRUD,
// stage updates, navigation checks, snapshots, completion, import/export
// and bulk operations, plus health and Prometheus metrics.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	scopeflow "github.com/scopeflow/scopeflow"
	"github.com/scopeflow/scopeflow/internal/logging"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/session"
)

// Server wraps the engine and implements the HTTP surface.
type Server struct {
	engine  *scopeflow.Engine
	logger  *slog.Logger
	metrics *metrics
}

type metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scopeflow_operations_total",
		Help: "Lifecycle operations processed, by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(operations)
	return &metrics{registry: reg, operations: operations}
}

func (m *metrics) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler builds the HTTP handler for an engine.
func NewHandler(engine *scopeflow.Engine, opts ...ServerOption) http.Handler {
	s := &Server{
		engine:  engine,
		logger:  logging.NewNop(),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Get("/stages", s.listStages)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Post("/import", s.importSession)
		r.Post("/bulk/archive", s.bulkArchive)
		r.Post("/bulk/delete", s.bulkDelete)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.updateMetadata)
			r.Delete("/", s.deleteSession)
			r.Get("/snapshot", s.getSnapshot)
			r.Get("/export", s.exportSession)
			r.Get("/save-status", s.getSaveStatus)
			r.Post("/stages/{stageID}", s.updateStage)
			r.Post("/navigate", s.navigate)
			r.Post("/complete", s.complete)
			r.Post("/archive", s.archive)
			r.Post("/save", s.save)
		})
	})

	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "scopeflow-http",
		"version": scopeflow.Version,
	})
}

func (s *Server) listStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Registry().Stages())
}

type createSessionRequest struct {
	Name             string         `json:"name"`
	OrganizationName string         `json:"organization_name"`
	Industry         string         `json:"industry"`
	Payload          domain.Payload `json:"payload,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("createSession: invalid request body", "err", err)
		return
	}

	created, err := s.engine.CreateSession(r.Context(), session.CreateRequest{
		Name:             body.Name,
		OrganizationName: body.OrganizationName,
		Industry:         body.Industry,
		Payload:          body.Payload,
	})
	s.metrics.observe("create", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	got, err := s.engine.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

type metadataRequest struct {
	Name             string `json:"name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Industry         string `json:"industry,omitempty"`
}

func (s *Server) updateMetadata(w http.ResponseWriter, r *http.Request) {
	var body metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("updateMetadata: invalid request body", "err", err)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	err := s.engine.SetMetadata(r.Context(), sessionID, body.Name, body.OrganizationName, body.Industry)
	s.metrics.observe("set_metadata", err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	updated, err := s.engine.Session(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Delete(r.Context(), chi.URLParam(r, "sessionID"))
	s.metrics.observe("delete", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("current"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) updateStage(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("updateStage: invalid request body", "err", err)
		return
	}

	snap, err := s.engine.UpdateStage(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "stageID"), patch)
	s.metrics.observe("update_stage", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type navigateRequest struct {
	Target string `json:"target"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := s.engine.Navigate(r.Context(), chi.URLParam(r, "sessionID"), body.Target)
	s.metrics.observe("navigate", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type completeRequest struct {
	LinkedProjectID string `json:"linked_project_id,omitempty"`
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var body completeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	completed, err := s.engine.Complete(r.Context(), chi.URLParam(r, "sessionID"), body.LinkedProjectID)
	s.metrics.observe("complete", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completed)
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Archive(r.Context(), chi.URLParam(r, "sessionID"))
	s.metrics.observe("archive", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Save(r.Context(), chi.URLParam(r, "sessionID"))
	s.metrics.observe("save", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSaveStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.SaveStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.Export(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) importSession(w http.ResponseWriter, r *http.Request) {
	var doc domain.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Invalid export document", http.StatusBadRequest)
		s.logger.Warn("importSession: invalid document", "err", err)
		return
	}

	imported, err := s.engine.Import(r.Context(), doc)
	s.metrics.observe("import", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, imported)
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

type bulkResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func toBulkResponse(result session.BulkResult) bulkResponse {
	resp := bulkResponse{Succeeded: result.Succeeded}
	if len(result.Failed) > 0 {
		resp.Failed = make(map[string]string, len(result.Failed))
		for _, f := range result.Failed {
			resp.Failed[f.ID] = f.Err.Error()
		}
	}
	return resp
}

func (s *Server) bulkArchive(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result := s.engine.BulkArchive(r.Context(), body.IDs)
	s.metrics.observe("bulk_archive", result.Err())
	writeJSON(w, statusForBulk(result), toBulkResponse(result))
}

func (s *Server) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result := s.engine.BulkDelete(r.Context(), body.IDs)
	s.metrics.observe("bulk_delete", result.Err())
	writeJSON(w, statusForBulk(result), toBulkResponse(result))
}

func statusForBulk(result session.BulkResult) int {
	if len(result.Failed) > 0 {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// writeError maps the engine error taxonomy onto HTTP statuses. Expected
// workflow outcomes (validation incomplete, navigation refused) are
// conflict responses with structured bodies, not server faults.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		incomplete *domain.ValidationIncompleteError
		refused    *domain.NavigationRefusedError
		persist    *domain.PersistenceError
	)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "validation incomplete",
			"failing": incomplete.Failing,
		})
	case errors.As(err, &refused):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "navigation refused",
			"stage":      refused.StageID,
			"dependency": refused.DependencyID,
			"message":    refused.Message,
		})
	case errors.As(err, &persist):
		s.logger.Error("persistence failure", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "persistence failure"})
	default:
		s.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
