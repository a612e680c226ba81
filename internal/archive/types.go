package archive

import (
	"time"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
)

const recordVersion = "1.0"

// DiagnosisRecord is the structure archived to S3 for every completed
// analysis. Patient identifiers are hashed and free text is scrubbed.
type DiagnosisRecord struct {
	Version     string              `json:"version"`
	RecordID    string              `json:"record_id"`
	PatientHash string              `json:"patient_hash,omitempty"`
	ArchivedAt  time.Time           `json:"archived_at"`
	Provider    string              `json:"provider"`
	LatencyMs   int64               `json:"latency_ms"`
	Labels      Labels              `json:"labels"`
	Symptoms    []diagnosis.Symptom `json:"symptoms"`
	Diagnosis   diagnosis.Diagnosis `json:"diagnosis"`
}

// Labels summarise a record for later curation without reading the body.
type Labels struct {
	Severity          string   `json:"severity"`
	AIGenerated       bool     `json:"ai_generated"`
	SeekImmediateCare bool     `json:"seek_immediate_care"`
	EmergencyKeywords []string `json:"emergency_keywords,omitempty"`
	SymptomCount      int      `json:"symptom_count"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	RecordID          string `json:"record_id"`
	S3Key             string `json:"s3_key"`
	Provider          string `json:"provider"`
	Severity          string `json:"severity"`
	SeekImmediateCare bool   `json:"seek_immediate_care"`
	ArchivedAt        string `json:"archived_at"`
}
