package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Emergency describes one reading that needs the care team.
type Emergency struct {
	PatientID   string
	PatientName string
	Reading     vitals.WearableVitals
	Alerts      []vitals.VitalAlert
	Risk        vitals.RiskAssessment
}

// ShouldNotify reports whether the reading carries a critical alert or a high
// risk score.
func (e Emergency) ShouldNotify() bool {
	if e.Risk.Emergency() {
		return true
	}
	return lo.SomeBy(e.Alerts, func(a vitals.VitalAlert) bool { return a.IsCritical() })
}

// EmergencyNotifier emails the care team about critical readings. Repeat
// notifications for the same patient are suppressed inside the cooldown.
type EmergencyNotifier struct {
	email      EmailSender
	recipients []string
	cooldown   time.Duration
	metrics    *metrics.VitalsMetrics
	logger     *logging.Logger
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

type EmergencyOption func(*EmergencyNotifier)

// WithCooldown sets the per patient suppression window. Zero disables it.
func WithCooldown(d time.Duration) EmergencyOption {
	return func(n *EmergencyNotifier) {
		if d >= 0 {
			n.cooldown = d
		}
	}
}

func WithNotifierMetrics(m *metrics.VitalsMetrics) EmergencyOption {
	return func(n *EmergencyNotifier) {
		n.metrics = m
	}
}

func NewEmergencyNotifier(email EmailSender, recipients []string, logger *logging.Logger, opts ...EmergencyOption) *EmergencyNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	n := &EmergencyNotifier{
		email: email,
		recipients: lo.Uniq(lo.Compact(lo.Map(recipients, func(r string, _ int) string {
			return strings.TrimSpace(r)
		}))),
		cooldown: 10 * time.Minute,
		logger:   logger,
		now:      time.Now,
		lastSent: map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends the emergency email when warranted. It returns (false, nil)
// when nothing was sent because the reading is not an emergency, no recipients
// are configured, or the patient is inside the cooldown.
func (n *EmergencyNotifier) Notify(ctx context.Context, e Emergency) (bool, error) {
	if n == nil || !e.ShouldNotify() {
		return false, nil
	}
	if n.email == nil || len(n.recipients) == 0 {
		n.logger.Debug("notify: no care team recipients configured, skipping emergency email", "patient_id", e.PatientID)
		n.metrics.ObserveNotification("skipped")
		return false, nil
	}
	if !n.reserve(e.PatientID) {
		n.metrics.ObserveNotification("suppressed")
		return false, nil
	}

	subject, body, htmlBody := renderEmergency(e)
	var errs []error
	for _, to := range n.recipients {
		if err := n.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body, HTML: htmlBody}); err != nil {
			errs = append(errs, fmt.Errorf("notify: emergency email to %s: %w", to, err))
		}
	}
	if len(errs) == len(n.recipients) {
		n.release(e.PatientID)
		n.metrics.ObserveNotification("error")
		return false, errors.Join(errs...)
	}

	n.metrics.ObserveNotification("sent")
	n.logger.Warn("emergency notification sent",
		"patient_id", e.PatientID,
		"risk_score", e.Risk.Score,
		"risk_level", e.Risk.Level,
		"critical_alerts", len(lo.Filter(e.Alerts, func(a vitals.VitalAlert, _ int) bool { return a.IsCritical() })),
	)
	return true, errors.Join(errs...)
}

func (n *EmergencyNotifier) reserve(patientID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for id, last := range n.lastSent {
		if now.Sub(last) >= n.cooldown {
			delete(n.lastSent, id)
		}
	}
	if _, ok := n.lastSent[patientID]; ok {
		return false
	}
	n.lastSent[patientID] = now
	return true
}

func (n *EmergencyNotifier) release(patientID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.lastSent, patientID)
}

func renderEmergency(e Emergency) (subject, body, htmlBody string) {
	name := strings.TrimSpace(e.PatientName)
	if name == "" {
		name = e.PatientID
	}
	subject = fmt.Sprintf("URGENT: critical vitals for %s", name)

	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s (%s)\n", name, e.PatientID)
	fmt.Fprintf(&b, "Reading time: %s\n", e.Reading.Timestamp.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Risk: %s (score %d)\n", strings.ToUpper(string(e.Risk.Level)), e.Risk.Score)
	if len(e.Risk.Factors) > 0 {
		fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(e.Risk.Factors, ", "))
	}
	if len(e.Alerts) > 0 {
		b.WriteString("\nAlerts:\n")
		for _, a := range e.Alerts {
			fmt.Fprintf(&b, "- [%s] %s\n", strings.ToUpper(string(a.Severity)), a.Message)
		}
	}
	b.WriteString("\nReview the patient dashboard and contact the patient immediately.\n")
	body = b.String()

	htmlBody = "<pre>" + html.EscapeString(body) + "</pre>"
	return subject, body, htmlBody
}
