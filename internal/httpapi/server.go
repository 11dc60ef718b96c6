// Package httpapi exposes the job submission and health endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/farmaops/catalog-enricher/internal/job"
	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
)

// Submitter accepts validated jobs for asynchronous processing.
type Submitter interface {
	Submit(j model.Job) (model.Job, error)
	FailedJobs() []model.Job
}

// Server routes the HTTP surface: job submission, failed-job inspection and
// health.
type Server struct {
	jobs Submitter
	log  *slog.Logger
}

func NewServer(jobs Submitter, log *slog.Logger) *Server {
	if log == nil {
		log = obs.Logger
	}
	return &Server{jobs: jobs, log: log}
}

// Handler returns the HTTP mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("GET /jobs/failed", s.handleFailed)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type submitRequest struct {
	CustomerID         string `json:"customerId"`
	FilePath           string `json:"filePath"`
	FileName           string `json:"fileName"`
	SupplierOffersPath string `json:"supplierOffersPath"`
}

type submitResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if msg := validateSubmit(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	queued, err := s.jobs.Submit(model.Job{
		CustomerID:         strings.TrimSpace(req.CustomerID),
		SourcePath:         strings.TrimSpace(req.FilePath),
		FileName:           strings.TrimSpace(req.FileName),
		SupplierOffersPath: strings.TrimSpace(req.SupplierOffersPath),
	})
	if err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "queue full, retry later"})
			return
		}
		s.log.Error("job submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{Message: "accepted", JobID: queued.ID})
}

func validateSubmit(req submitRequest) string {
	if strings.TrimSpace(req.CustomerID) == "" {
		return "customerId is required"
	}
	if strings.TrimSpace(req.FilePath) == "" {
		return "filePath is required"
	}
	if strings.TrimSpace(req.FileName) == "" {
		return "fileName is required"
	}
	return ""
}

func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	failed := s.jobs.FailedJobs()
	if failed == nil {
		failed = []model.Job{}
	}
	writeJSON(w, http.StatusOK, failed)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
