package wearables

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const (
	maxReadingBytes  = 64 << 10
	defaultListLimit = 100
)

type ingester interface {
	Ingest(ctx context.Context, in vitals.ReadingInput) (IngestResult, error)
	Recent(ctx context.Context, patientID string, limit int) ([]vitals.WearableVitals, error)
}

// Handler serves the vitals routes.
type Handler struct {
	svc    ingester
	logger *logging.Logger
}

func NewHandler(svc ingester, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type validationResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

// Ingest handles POST /api/vitals.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var in vitals.ReadingInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReadingBytes)).Decode(&in); err != nil {
		h.logger.Warn("failed to decode vitals reading", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Ingest(r.Context(), in)
	if err != nil {
		if verr, ok := IsValidationError(err); ok {
			writeJSON(w, http.StatusBadRequest, validationResponse{Error: "invalid reading", Fields: verr.Fields})
			return
		}
		h.logger.Error("failed to ingest vitals", "error", err, "patient_id", in.PatientID)
		http.Error(w, "Failed to ingest vitals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Recent handles GET /api/patients/{patientID}/vitals?limit=.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, DefaultHistoryCap)
		}
	}

	readings, err := h.svc.Recent(r.Context(), patientID, limit)
	if err != nil {
		h.logger.Error("failed to list vitals", "error", err, "patient_id", patientID)
		http.Error(w, "Failed to list vitals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
