package vitals

import "time"

// VitalKind names one independently thresholded measurement stream.
type VitalKind string

const (
	VitalHeartRate        VitalKind = "Heart Rate"
	VitalBloodPressure    VitalKind = "Blood Pressure"
	VitalTemperature      VitalKind = "Temperature"
	VitalOxygenSaturation VitalKind = "Oxygen Saturation"
	VitalStressLevel      VitalKind = "Stress Level"
)

// Channels lists the vital channels in evaluation order.
var Channels = []VitalKind{
	VitalHeartRate,
	VitalBloodPressure,
	VitalTemperature,
	VitalOxygenSaturation,
	VitalStressLevel,
}

// Severity is the alert tier.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus tracks clinician handling of an alert.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// BloodPressure is a systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// WearableVitals is a single device sync snapshot.
type WearableVitals struct {
	PatientID        string        `json:"patientId"`
	DeviceID         string        `json:"deviceId"`
	Timestamp        time.Time     `json:"timestamp"`
	HeartRate        int           `json:"heartRate"`
	BloodPressure    BloodPressure `json:"bloodPressure"`
	Temperature      float64       `json:"temperature"`
	OxygenSaturation int           `json:"oxygenSaturation"`
	StressLevel      float64       `json:"stressLevel"`
	Steps            int           `json:"steps"`
	Calories         int           `json:"calories"`
	BatteryLevel     int           `json:"batteryLevel"`
}

// VitalAlert is emitted when a channel leaves its normal band.
type VitalAlert struct {
	ID          string      `json:"id"`
	PatientID   string      `json:"patientId"`
	PatientName string      `json:"patientName"`
	Vital       VitalKind   `json:"vital"`
	Value       string      `json:"value"`
	Threshold   string      `json:"threshold"`
	Severity    Severity    `json:"severity"`
	Timestamp   time.Time   `json:"timestamp"`
	Status      AlertStatus `json:"status"`
	Message     string      `json:"message"`
}

// IsCritical reports whether the alert is in the critical tier.
func (a VitalAlert) IsCritical() bool {
	return a.Severity == SeverityCritical
}
