package vitals

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Engine evaluates readings against a threshold table. The zero value is not
// usable; use NewEngine or DefaultEngine.
type Engine struct {
	Thresholds Thresholds
	newID      func() string
}

// DefaultEngine evaluates against DefaultThresholds.
var DefaultEngine = NewEngine(DefaultThresholds)

// NewEngine returns an engine for the given table.
func NewEngine(t Thresholds) *Engine {
	return &Engine{Thresholds: t, newID: newAlertID}
}

// Check evaluates v against DefaultThresholds.
func Check(v WearableVitals, patientName string) []VitalAlert {
	return DefaultEngine.Check(v, patientName)
}

// Check returns at most one alert per channel, in channel order. It performs no
// I/O and is safe for concurrent use.
func (e *Engine) Check(v WearableVitals, patientName string) []VitalAlert {
	t := e.Thresholds
	alerts := make([]VitalAlert, 0, len(Channels))
	emit := func(kind VitalKind, sev Severity, value, threshold, message string) {
		alerts = append(alerts, VitalAlert{
			ID:          e.id(),
			PatientID:   v.PatientID,
			PatientName: patientName,
			Vital:       kind,
			Value:       value,
			Threshold:   threshold,
			Severity:    sev,
			Timestamp:   v.Timestamp,
			Status:      StatusActive,
			Message:     message,
		})
	}

	if sev, ok := t.HeartRate.Classify(float64(v.HeartRate)); ok {
		value := strconv.Itoa(v.HeartRate)
		emit(VitalHeartRate, sev, value, t.HeartRate.String(),
			alertMessage(VitalHeartRate, sev, patientName, value+" bpm"))
	}

	if sev, ok := classifyBloodPressure(t, v.BloodPressure); ok {
		value := fmt.Sprintf("%d/%d", v.BloodPressure.Systolic, v.BloodPressure.Diastolic)
		emit(VitalBloodPressure, sev, value, t.bloodPressureRange(),
			alertMessage(VitalBloodPressure, sev, patientName, value+" mmHg"))
	}

	if sev, ok := t.Temperature.Classify(v.Temperature); ok {
		value := strconv.FormatFloat(v.Temperature, 'f', 1, 64)
		emit(VitalTemperature, sev, value, t.Temperature.String(),
			alertMessage(VitalTemperature, sev, patientName, value+"°F"))
	}

	if sev, ok := t.OxygenSaturation.Classify(float64(v.OxygenSaturation)); ok {
		value := strconv.Itoa(v.OxygenSaturation)
		emit(VitalOxygenSaturation, sev, value, t.OxygenSaturation.String(),
			alertMessage(VitalOxygenSaturation, sev, patientName, value+"%"))
	}

	if sev, ok := t.StressLevel.Classify(v.StressLevel); ok {
		value := strconv.FormatFloat(v.StressLevel, 'f', -1, 64)
		emit(VitalStressLevel, sev, value, t.StressLevel.String(),
			alertMessage(VitalStressLevel, sev, patientName, value))
	}

	return alerts
}

func (e *Engine) id() string {
	if e.newID == nil {
		return newAlertID()
	}
	return e.newID()
}

// classifyBloodPressure combines systolic and diastolic into one channel with
// the highest tier breached by either.
func classifyBloodPressure(t Thresholds, bp BloodPressure) (Severity, bool) {
	sysSev, sysOK := t.Systolic.Classify(float64(bp.Systolic))
	diaSev, diaOK := t.Diastolic.Classify(float64(bp.Diastolic))
	switch {
	case sysSev == SeverityCritical || diaSev == SeverityCritical:
		return SeverityCritical, true
	case sysOK || diaOK:
		return SeverityWarning, true
	default:
		return "", false
	}
}

func alertMessage(kind VitalKind, sev Severity, patientName, reading string) string {
	subject := patientName
	if subject == "" {
		subject = "Patient"
	}
	if sev == SeverityCritical {
		return fmt.Sprintf("CRITICAL: %s for %s is %s. %s", kind, subject, reading, criticalWording(kind))
	}
	return fmt.Sprintf("WARNING: %s for %s is %s. Monitor closely", kind, subject, reading)
}

func criticalWording(kind VitalKind) string {
	switch kind {
	case VitalOxygenSaturation:
		return "Respiratory emergency"
	case VitalBloodPressure:
		return "Emergency intervention needed"
	default:
		return "Immediate medical attention required"
	}
}

// newAlertID returns a time ordered UUIDv7, falling back to a random UUID.
func newAlertID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
