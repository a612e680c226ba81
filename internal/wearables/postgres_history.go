package wearables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresHistoryStore persists readings to vital_readings keyed by ReadingID
// and prunes each patient back to the cap after every insert.
type PostgresHistoryStore struct {
	db  querier
	cap int
}

var _ HistoryStore = (*PostgresHistoryStore)(nil)

func NewPostgresHistoryStore(pool *pgxpool.Pool, capacity int) *PostgresHistoryStore {
	if pool == nil {
		panic("wearables: pgx pool required")
	}
	return newPostgresHistoryStoreWithQuerier(pool, capacity)
}

func newPostgresHistoryStoreWithQuerier(q querier, capacity int) *PostgresHistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &PostgresHistoryStore{db: q, cap: capacity}
}

func (s *PostgresHistoryStore) Append(ctx context.Context, v vitals.WearableVitals) error {
	if v.PatientID == "" {
		return errPatientIDRequired
	}
	insert := `
		INSERT INTO vital_readings (
			id, patient_id, device_id, recorded_at, heart_rate, systolic, diastolic,
			temperature, oxygen_saturation, stress_level, steps, calories, battery_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, insert,
		ReadingID(v), v.PatientID, v.DeviceID, v.Timestamp.UTC(),
		v.HeartRate, v.BloodPressure.Systolic, v.BloodPressure.Diastolic,
		v.Temperature, v.OxygenSaturation, v.StressLevel,
		v.Steps, v.Calories, v.BatteryLevel,
	)
	if err != nil {
		return fmt.Errorf("wearables: insert reading: %w", err)
	}

	prune := `
		DELETE FROM vital_readings
		WHERE patient_id = $1 AND id NOT IN (
			SELECT id FROM vital_readings
			WHERE patient_id = $1
			ORDER BY recorded_at DESC, created_at DESC
			LIMIT $2
		)
	`
	if _, err := s.db.Exec(ctx, prune, v.PatientID, s.cap); err != nil {
		return fmt.Errorf("wearables: prune readings: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) Recent(ctx context.Context, patientID string, limit int) ([]vitals.WearableVitals, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}
	rows, err := s.db.Query(ctx, `
		SELECT patient_id, device_id, recorded_at, heart_rate, systolic, diastolic,
			temperature, oxygen_saturation, stress_level, steps, calories, battery_level
		FROM vital_readings
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("wearables: list readings: %w", err)
	}
	defer rows.Close()

	out := []vitals.WearableVitals{}
	for rows.Next() {
		var v vitals.WearableVitals
		if err := rows.Scan(
			&v.PatientID, &v.DeviceID, &v.Timestamp, &v.HeartRate,
			&v.BloodPressure.Systolic, &v.BloodPressure.Diastolic,
			&v.Temperature, &v.OxygenSaturation, &v.StressLevel,
			&v.Steps, &v.Calories, &v.BatteryLevel,
		); err != nil {
			return nil, fmt.Errorf("wearables: scan reading: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wearables: iterate readings: %w", err)
	}
	return out, nil
}
