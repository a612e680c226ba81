package wearables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/events"
	"github.com/wolfman30/telehealth-ai-platform/internal/notify"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// AlertSink stores raised alerts.
type AlertSink interface {
	Append(ctx context.Context, patientID string, alerts ...vitals.VitalAlert) error
}

// PatientRecorder keeps the latest reading on the patient record.
type PatientRecorder interface {
	RecordVitals(ctx context.Context, patientID, name string, v vitals.WearableVitals) error
}

// Broadcaster pushes alerts to live subscribers.
type Broadcaster interface {
	Publish(patientID string, alerts []vitals.VitalAlert)
}

// EmergencyNotifier pages the care team.
type EmergencyNotifier interface {
	Notify(ctx context.Context, e notify.Emergency) (bool, error)
}

// EventAppender writes domain events to the outbox.
type EventAppender interface {
	Append(ctx context.Context, aggregate string, evt events.CanonicalEvent, opts ...events.EnvelopeOption) (events.Envelope, error)
}

// IngestResult is returned for every accepted reading.
type IngestResult struct {
	Reading          vitals.WearableVitals `json:"reading"`
	Alerts           []vitals.VitalAlert   `json:"alerts"`
	Risk             vitals.RiskAssessment `json:"risk"`
	CareTeamNotified bool                  `json:"careTeamNotified"`
}

// Service validates readings, runs the threshold engine and fans the result
// out to the sinks. History, alert and patient writes must succeed; the
// live feed, notifications and events are best effort.
type Service struct {
	engine   *vitals.Engine
	history  HistoryStore
	alerts   AlertSink
	patients PatientRecorder
	hub      Broadcaster
	notifier EmergencyNotifier
	outbox   EventAppender
	metrics  *metrics.VitalsMetrics
	logger   *logging.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithEngine(e *vitals.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

func WithPatients(p PatientRecorder) Option {
	return func(s *Service) { s.patients = p }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.hub = b }
}

func WithNotifier(n EmergencyNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithOutbox(o EventAppender) Option {
	return func(s *Service) { s.outbox = o }
}

func WithMetrics(m *metrics.VitalsMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(history HistoryStore, alerts AlertSink, logger *logging.Logger, opts ...Option) *Service {
	if history == nil {
		panic("wearables: history store required")
	}
	if alerts == nil {
		panic("wearables: alert sink required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		engine:  vitals.DefaultEngine,
		history: history,
		alerts:  alerts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes one wearable sync. A *vitals.ValidationError is returned
// unchanged for malformed input.
func (s *Service) Ingest(ctx context.Context, in vitals.ReadingInput) (IngestResult, error) {
	started := time.Now()
	reading, err := in.ToVitals(s.now())
	if err != nil {
		s.metrics.ObserveReading("invalid")
		return IngestResult{}, err
	}
	logger := s.logger.ForPatient(reading.PatientID)

	result := IngestResult{
		Reading: reading,
		Alerts:  s.engine.Check(reading, in.PatientName),
		Risk:    vitals.Assess(reading),
	}

	if err := s.persist(ctx, reading, in.PatientName, result.Alerts); err != nil {
		s.metrics.ObserveReading("error")
		return IngestResult{}, err
	}
	s.metrics.ObserveReading("accepted")
	for _, a := range result.Alerts {
		s.metrics.ObserveAlert(string(a.Vital), string(a.Severity))
	}

	if len(result.Alerts) > 0 && s.hub != nil {
		s.hub.Publish(reading.PatientID, result.Alerts)
	}
	if s.notifier != nil {
		sent, err := s.notifier.Notify(ctx, notify.Emergency{
			PatientID:   reading.PatientID,
			PatientName: in.PatientName,
			Reading:     reading,
			Alerts:      result.Alerts,
			Risk:        result.Risk,
		})
		if err != nil {
			logger.Error("emergency notification failed", "error", err)
		}
		result.CareTeamNotified = sent
	}
	if len(result.Alerts) > 0 {
		s.recordEvent(ctx, logger, result)
	}

	s.metrics.ObserveIngestLatency(time.Since(started).Seconds())
	logger.Info("vitals ingested",
		"device_id", reading.DeviceID,
		"alerts", len(result.Alerts),
		"critical", lo.CountBy(result.Alerts, func(a vitals.VitalAlert) bool { return a.IsCritical() }),
		"risk_level", result.Risk.Level,
	)
	return result, nil
}

// persist writes the alerts last: history and the patient record tolerate a
// retried sync, the alert store does not.
func (s *Service) persist(ctx context.Context, reading vitals.WearableVitals, name string, alerts []vitals.VitalAlert) error {
	if err := s.history.Append(ctx, reading); err != nil {
		return fmt.Errorf("wearables: store reading: %w", err)
	}
	if s.patients != nil {
		if err := s.patients.RecordVitals(ctx, reading.PatientID, name, reading); err != nil {
			return fmt.Errorf("wearables: update patient record: %w", err)
		}
	}
	if len(alerts) > 0 {
		if err := s.alerts.Append(ctx, reading.PatientID, alerts...); err != nil {
			return fmt.Errorf("wearables: store alerts: %w", err)
		}
	}
	return nil
}

func (s *Service) recordEvent(ctx context.Context, logger *logging.Logger, result IngestResult) {
	if s.outbox == nil {
		return
	}
	evt := events.AlertRaisedV1{
		PatientID: result.Reading.PatientID,
		ReadingAt: result.Reading.Timestamp,
		Alerts: lo.Map(result.Alerts, func(a vitals.VitalAlert, _ int) events.AlertEntry {
			return events.AlertEntry{
				AlertID:   a.ID,
				Vital:     string(a.Vital),
				Severity:  string(a.Severity),
				Value:     a.Value,
				Threshold: a.Threshold,
			}
		}),
		RiskScore:     result.Risk.Score,
		RiskLevel:     string(result.Risk.Level),
		CareTeamPaged: result.CareTeamNotified,
	}
	if _, err := s.outbox.Append(ctx, events.PatientAggregate(result.Reading.PatientID), evt); err != nil {
		logger.Error("failed to record alert event", "error", err)
	}
}

// Recent proxies the history store for handlers.
func (s *Service) Recent(ctx context.Context, patientID string, limit int) ([]vitals.WearableVitals, error) {
	return s.history.Recent(ctx, patientID, limit)
}

// IsValidationError reports whether err came from input validation.
func IsValidationError(err error) (*vitals.ValidationError, bool) {
	var verr *vitals.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
