package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const (
	defaultListLimit   = 50
	streamHistoryLimit = 20
)

// StatusAuditor records clinician status changes.
type StatusAuditor interface {
	LogAlertStatusChange(ctx context.Context, patientID, alertID, clinician, status string) error
}

// Handler serves the alert history and live stream routes.
type Handler struct {
	store   Store
	hub     *Hub
	auditor StatusAuditor
	actor   func(*http.Request) string
	logger  *logging.Logger
}

func NewHandler(store Store, hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, hub: hub, logger: logger}
}

// WithAuditor records status changes. actor names the clinician making the
// request and may be nil.
func (h *Handler) WithAuditor(a StatusAuditor, actor func(*http.Request) string) *Handler {
	h.auditor = a
	h.actor = actor
	return h
}

// List handles GET /api/patients/{patientID}/alerts?limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	limit := parseLimit(r, defaultListLimit, DefaultHistoryCap)

	list, err := h.store.List(r.Context(), patientID, limit)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err, "patient_id", patientID)
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": list})
}

type updateStatusRequest struct {
	Status vitals.AlertStatus `json:"status"`
}

// UpdateStatus handles PATCH /api/patients/{patientID}/alerts/{alertID}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	alertID := chi.URLParam(r, "alertID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		http.Error(w, "status must be active, acknowledged or resolved", http.StatusBadRequest)
		return
	}

	alert, err := h.store.UpdateStatus(r.Context(), patientID, alertID, req.Status)
	switch {
	case errors.Is(err, ErrAlertNotFound):
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to update alert", "error", err, "patient_id", patientID, "alert_id", alertID)
		http.Error(w, "Failed to update alert", http.StatusInternalServerError)
		return
	}

	clinician := ""
	if h.actor != nil {
		clinician = h.actor(r)
	}
	h.logger.Info("alert status updated", "patient_id", patientID, "alert_id", alertID, "status", req.Status, "clinician", clinician)
	if h.auditor != nil {
		if err := h.auditor.LogAlertStatusChange(r.Context(), patientID, alertID, clinician, string(req.Status)); err != nil {
			h.logger.Warn("failed to audit alert status change", "error", err, "alert_id", alertID)
		}
	}
	writeJSON(w, http.StatusOK, alert)
}

// Stream handles GET /api/patients/{patientID}/alerts/stream.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "Live alerts are not enabled", http.StatusServiceUnavailable)
		return
	}
	patientID := chi.URLParam(r, "patientID")
	history, err := h.store.List(r.Context(), patientID, streamHistoryLimit)
	if err != nil {
		h.logger.Warn("failed to load alert history for stream", "error", err, "patient_id", patientID)
	}
	h.hub.Serve(w, r, patientID, history)
}

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
