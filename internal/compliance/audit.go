// Package compliance provides healthcare regulatory compliance features.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventDiagnosisIssued is logged for every completed analysis.
	EventDiagnosisIssued AuditEventType = "clinical.diagnosis_issued"
	// EventEmergencyEscalated is logged when a diagnosis tells the patient to seek immediate care.
	EventEmergencyEscalated AuditEventType = "clinical.emergency_escalated"
	// EventDisclaimerAttached is logged when a disclaimer is attached to a diagnosis.
	EventDisclaimerAttached AuditEventType = "compliance.disclaimer_attached"
	// EventAlertStatusChanged is logged when a clinician acknowledges or resolves an alert.
	EventAlertStatusChanged AuditEventType = "clinical.alert_status_changed"
)

// AuditEvent represents an immutable compliance audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	PatientID string          `json:"patient_id,omitempty"`
	RecordID  string          `json:"record_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Keywords  []string        `json:"keywords,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For diagnoses
	Provider          string `json:"provider,omitempty"`
	Condition         string `json:"condition,omitempty"`
	Severity          string `json:"severity,omitempty"`
	AIGenerated       bool   `json:"ai_generated,omitempty"`
	SeekImmediateCare bool   `json:"seek_immediate_care,omitempty"`
	SymptomCount      int    `json:"symptom_count,omitempty"`

	// For disclaimers
	DisclaimerLevel string `json:"disclaimer_level,omitempty"`

	// For alert status changes
	Status string `json:"status,omitempty"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db *sql.DB
}

var _ diagnosis.Observer = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Keywords == nil {
		event.Keywords = []string{}
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, patient_id, record_id, actor, keywords, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.PatientID),
		nullString(event.RecordID),
		nullString(event.Actor),
		pq.Array(event.Keywords),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// DiagnosisCompleted logs the analysis, and an escalation event when the
// patient was told to seek immediate care.
func (s *AuditService) DiagnosisCompleted(ctx context.Context, rec diagnosis.Record) error {
	return s.LogDiagnosis(ctx, rec)
}

// LogDiagnosis records provenance and emergency signals for a completed analysis.
func (s *AuditService) LogDiagnosis(ctx context.Context, rec diagnosis.Record) error {
	text := strings.Join(lo.Map(rec.Symptoms, func(sym diagnosis.Symptom, _ int) string {
		return sym.Name + " " + sym.Description
	}), " ")
	keywords := diagnosis.MatchedEmergencyKeywords(text)

	details := AuditDetails{
		Provider:          rec.Provider,
		Condition:         rec.Diagnosis.Condition,
		Severity:          string(rec.Diagnosis.Severity),
		AIGenerated:       rec.Diagnosis.AIGenerated,
		SeekImmediateCare: rec.Diagnosis.SeekImmediateCare,
		SymptomCount:      len(rec.Symptoms),
	}
	detailsJSON, _ := json.Marshal(details)

	if err := s.LogEvent(ctx, AuditEvent{
		EventType: EventDiagnosisIssued,
		PatientID: rec.PatientID,
		RecordID:  rec.ID,
		Actor:     rec.Provider,
		Keywords:  keywords,
		Details:   detailsJSON,
		CreatedAt: rec.CreatedAt,
	}); err != nil {
		return err
	}
	if !rec.Diagnosis.SeekImmediateCare {
		return nil
	}
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyEscalated,
		PatientID: rec.PatientID,
		RecordID:  rec.ID,
		Actor:     rec.Provider,
		Keywords:  keywords,
		Details:   detailsJSON,
		CreatedAt: rec.CreatedAt,
	})
}

// LogDisclaimerAttached logs when a disclaimer is attached to a diagnosis.
func (s *AuditService) LogDisclaimerAttached(ctx context.Context, patientID, level string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{DisclaimerLevel: level})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDisclaimerAttached,
		PatientID: patientID,
		Details:   detailsJSON,
	})
}

// LogAlertStatusChange logs a clinician's status update on an alert.
func (s *AuditService) LogAlertStatusChange(ctx context.Context, patientID, alertID, clinician, status string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Status: status})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventAlertStatusChanged,
		PatientID: patientID,
		RecordID:  alertID,
		Actor:     clinician,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, patient_id, record_id, actor, keywords, details, created_at
		FROM compliance_audit_events
		WHERE patient_id = $1
	`
	args := []interface{}{filter.PatientID}
	argIdx := 2

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var patientID, recordID, actor sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &e.EventType, &patientID, &recordID, &actor,
			pq.Array(&e.Keywords), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.PatientID = patientID.String
		e.RecordID = recordID.String
		e.Actor = actor.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to iterate audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	PatientID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
