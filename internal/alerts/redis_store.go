package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

const alertKeyPrefix = "alerts:"

// maxUpdateRetries bounds optimistic-lock retries in UpdateStatus.
const maxUpdateRetries = 5

// RedisStore keeps each patient's alerts in a capped Redis list (oldest at
// the head).
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	cap    int64
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, capacity int) *RedisStore {
	if client == nil {
		return nil
	}
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("telehealth.internal.alerts"),
		cap:    int64(capacity),
	}
}

func (s *RedisStore) Append(ctx context.Context, patientID string, alerts ...vitals.VitalAlert) error {
	if patientID == "" {
		return errors.New("alerts: patientID required")
	}
	if len(alerts) == 0 {
		return nil
	}

	values := make([]any, 0, len(alerts))
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("alerts: marshal alert: %w", err)
		}
		values = append(values, data)
	}

	ctx, span := s.tracer.Start(ctx, "alerts.append")
	defer span.End()
	span.SetAttributes(attribute.String("patient_id", patientID), attribute.Int("alerts", len(alerts)))

	key := alertKey(patientID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -s.cap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("alerts: append: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, patientID string, limit int) ([]vitals.VitalAlert, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.redis.LRange(ctx, alertKey(patientID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return nil, fmt.Errorf("alerts: list: %w", err)
	}

	out := make([]vitals.VitalAlert, 0, len(raw))
	for _, item := range raw {
		var a vitals.VitalAlert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, a)
	}
	return lo.Reverse(out), nil
}

// UpdateStatus rewrites one list element under WATCH so a concurrent append
// or trim cannot shift the index between read and write.
func (s *RedisStore) UpdateStatus(ctx context.Context, patientID, alertID string, status vitals.AlertStatus) (vitals.VitalAlert, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("alert_id", alertID), attribute.String("status", string(status)))

	key := alertKey(patientID)
	var updated vitals.VitalAlert
	txf := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for i, item := range raw {
			var a vitals.VitalAlert
			if err := json.Unmarshal([]byte(item), &a); err != nil || a.ID != alertID {
				continue
			}
			if err := applyStatus(&a, status); err != nil {
				return err
			}
			data, err := json.Marshal(a)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LSet(ctx, key, int64(i), data)
				return nil
			})
			if err == nil {
				updated = a
			}
			return err
		}
		return ErrAlertNotFound
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrAlertNotFound) && !errors.Is(err, ErrInvalidStatus) {
				span.RecordError(err)
				return vitals.VitalAlert{}, fmt.Errorf("alerts: update status: %w", err)
			}
			return vitals.VitalAlert{}, err
		}
		return updated, nil
	}
	return vitals.VitalAlert{}, fmt.Errorf("alerts: update status: %w", redis.TxFailedErr)
}

func alertKey(patientID string) string {
	return alertKeyPrefix + patientID
}
