package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const maxRequestBytes = 1 << 20

type jobEnqueuer interface {
	Enqueue(ctx context.Context, jobID string, req Request) error
}

// Handler wires HTTP requests to the diagnosis service.
type Handler struct {
	analyzer  Analyzer
	jobs      JobRecorder
	publisher jobEnqueuer
	logger    *logging.Logger
}

// NewHandler creates a diagnosis handler. jobs and publisher may be nil, in
// which case the async routes answer 503.
func NewHandler(analyzer Analyzer, jobs JobRecorder, publisher jobEnqueuer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{analyzer: analyzer, jobs: jobs, publisher: publisher, logger: logger}
}

// analyzeRequest is the wire form; symptoms accept strings, objects or
// JSON-encoded strings of either.
type analyzeRequest struct {
	PatientID string         `json:"patientId"`
	Symptoms  []SymptomInput `json:"symptoms"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var body analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		h.logger.Warn("failed to decode diagnosis request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return Request{}, false
	}
	return Request{
		PatientID: strings.TrimSpace(body.PatientID),
		Symptoms:  NormalizeSymptoms(body.Symptoms),
	}, true
}

// Analyze handles POST /api/diagnoses.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrAnalysisInProgress) {
			http.Error(w, "Analysis already in progress for patient", http.StatusConflict)
			return
		}
		h.logger.Error("failed to analyze symptoms", "error", err, "patient_id", req.PatientID)
		http.Error(w, "Failed to analyze symptoms", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// EnqueueJob handles POST /api/diagnoses/jobs.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.publisher == nil {
		http.Error(w, "Async diagnosis is not configured", http.StatusServiceUnavailable)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if len(req.Symptoms) == 0 {
		http.Error(w, ErrNoSymptoms.Error(), http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	if err := h.jobs.PutPending(r.Context(), &JobRecord{JobID: jobID, Request: &req}); err != nil {
		h.logger.Error("failed to persist diagnosis job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to create job", http.StatusInternalServerError)
		return
	}
	if err := h.publisher.Enqueue(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue diagnosis job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": string(JobStatusPending),
	})
}

// GetJob handles GET /api/diagnoses/jobs/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Async diagnosis is not configured", http.StatusServiceUnavailable)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load diagnosis job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
