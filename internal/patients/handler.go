package patients

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Handler serves patient records.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Get handles GET /api/patients/{patientID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	patient, err := h.store.Get(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			http.Error(w, "Patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load patient", "error", err, "patient_id", patientID)
		http.Error(w, "Failed to load patient", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(patient)
}
