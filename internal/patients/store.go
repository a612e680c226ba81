package patients

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

// recentDiagnosesLimit bounds how many diagnoses Get returns.
const recentDiagnosesLimit = 20

var ErrPatientNotFound = errors.New("patients: patient not found")

// Patient is the record a clinician sees for one patient.
type Patient struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name,omitempty"`
	LatestVitals *vitals.WearableVitals `json:"latestVitals,omitempty"`
	LastSyncAt   *time.Time             `json:"lastSyncAt,omitempty"`
	Diagnoses    []diagnosis.Diagnosis  `json:"diagnoses"` // newest first
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Store persists patient records. Writes create the record when missing.
type Store interface {
	RecordVitals(ctx context.Context, patientID, name string, v vitals.WearableVitals) error
	AppendDiagnosis(ctx context.Context, patientID string, d diagnosis.Diagnosis) error
	Get(ctx context.Context, patientID string) (*Patient, error)
}

var errPatientIDRequired = errors.New("patients: patientID required")
