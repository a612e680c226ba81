package diagnosis

import (
	"errors"
	"time"
)

var (
	// ErrNoSymptoms is returned when a request carries no usable symptoms.
	ErrNoSymptoms = errors.New("diagnosis: no symptoms provided")
	// ErrAnalysisInProgress is returned when a patient already has an analysis running.
	ErrAnalysisInProgress = errors.New("diagnosis: analysis already in progress")
)

// Severity grades a diagnosis.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityCritical:
		return true
	}
	return false
}

// Symptom is the canonical engine input.
type Symptom struct {
	Name        string    `json:"name"`
	Severity    int       `json:"severity,omitempty"` // 1-10, 0 when unspecified
	Duration    string    `json:"duration,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Differential is an alternative candidate condition.
type Differential struct {
	Condition   string `json:"condition"`
	Probability int    `json:"probability"`
}

// Diagnosis is the engine output. It is never mutated after creation.
type Diagnosis struct {
	Condition             string         `json:"condition"`
	Confidence            int            `json:"confidence"`
	Severity              Severity       `json:"severity"`
	Explanation           string         `json:"explanation"`
	Recommendations       []string       `json:"recommendations"`
	Treatment             []string       `json:"treatment"`
	DifferentialDiagnoses []Differential `json:"differentialDiagnoses"`
	RedFlags              []string       `json:"redFlags"`
	Prognosis             string         `json:"prognosis"`
	Prevention            []string       `json:"prevention"`
	SeekImmediateCare     bool           `json:"seekImmediateCare"`
	AIGenerated           bool           `json:"aiGenerated"`
	Timestamp             time.Time      `json:"timestamp"`
}

// State is the request lifecycle stage.
type State string

const (
	StateIdle      State = "idle"
	StateAnalyzing State = "analyzing"
	StateComplete  State = "complete"
)

// Record captures one completed analysis for downstream sinks.
type Record struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patientId,omitempty"`
	Symptoms  []Symptom     `json:"symptoms"`
	Diagnosis Diagnosis     `json:"diagnosis"`
	Provider  string        `json:"provider"`
	Latency   time.Duration `json:"latency"`
	CreatedAt time.Time     `json:"createdAt"`
}
