package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists patients and their diagnoses.
type PostgresStore struct {
	db querier
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) RecordVitals(ctx context.Context, patientID, name string, v vitals.WearableVitals) error {
	if patientID == "" {
		return errPatientIDRequired
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("patients: marshal vitals: %w", err)
	}
	query := `
		INSERT INTO patients (id, name, latest_vitals, last_sync_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), patients.name),
			latest_vitals = EXCLUDED.latest_vitals,
			last_sync_at = EXCLUDED.last_sync_at,
			updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, patientID, name, payload, v.Timestamp.UTC()); err != nil {
		return fmt.Errorf("patients: record vitals: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendDiagnosis(ctx context.Context, patientID string, d diagnosis.Diagnosis) error {
	if patientID == "" {
		return errPatientIDRequired
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("patients: marshal diagnosis: %w", err)
	}
	createdAt := d.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		WITH patient AS (
			INSERT INTO patients (id) VALUES ($1)
			ON CONFLICT (id) DO UPDATE SET updated_at = now()
		)
		INSERT INTO patient_diagnoses (id, patient_id, condition, severity, ai_generated, diagnosis, created_at)
		VALUES ($2, $1, $3, $4, $5, $6, $7)
	`
	_, err = s.db.Exec(ctx, query, patientID, uuid.New(), d.Condition, string(d.Severity), d.AIGenerated, payload, createdAt)
	if err != nil {
		return fmt.Errorf("patients: append diagnosis: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, patientID string) (*Patient, error) {
	var (
		p        Patient
		name     *string
		latest   []byte
		lastSync *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, latest_vitals, last_sync_at, created_at, updated_at
		FROM patients WHERE id = $1
	`, patientID).Scan(&p.ID, &name, &latest, &lastSync, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	if name != nil {
		p.Name = *name
	}
	p.LastSyncAt = lastSync
	if len(latest) > 0 {
		var v vitals.WearableVitals
		if err := json.Unmarshal(latest, &v); err != nil {
			return nil, fmt.Errorf("patients: decode latest vitals: %w", err)
		}
		p.LatestVitals = &v
	}

	rows, err := s.db.Query(ctx, `
		SELECT diagnosis FROM patient_diagnoses
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, patientID, recentDiagnosesLimit)
	if err != nil {
		return nil, fmt.Errorf("patients: list diagnoses: %w", err)
	}
	defer rows.Close()

	p.Diagnoses = []diagnosis.Diagnosis{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("patients: scan diagnosis: %w", err)
		}
		var d diagnosis.Diagnosis
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("patients: decode diagnosis: %w", err)
		}
		p.Diagnoses = append(p.Diagnoses, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: iterate diagnoses: %w", err)
	}
	return &p, nil
}
