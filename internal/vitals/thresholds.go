package vitals

import (
	"fmt"
	"math"
)

// Band describes the normal range of a channel and the outer critical range.
// One-sided channels use ±Inf for the open side.
type Band struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	CriticalMin float64 `json:"criticalMin"`
	CriticalMax float64 `json:"criticalMax"`
	Unit        string  `json:"unit"`
}

// Classify places value into a tier. ok is false when the value is inside the
// normal band.
func (b Band) Classify(value float64) (sev Severity, ok bool) {
	if value < b.CriticalMin || value > b.CriticalMax {
		return SeverityCritical, true
	}
	if value < b.Min || value > b.Max {
		return SeverityWarning, true
	}
	return "", false
}

// String renders the normal band for alert threshold text.
func (b Band) String() string {
	switch {
	case math.IsInf(b.Max, 1):
		return fmt.Sprintf(">= %s%s", formatBound(b.Min), b.unitSuffix())
	case math.IsInf(b.Min, -1):
		return fmt.Sprintf("<= %s%s", formatBound(b.Max), b.unitSuffix())
	default:
		return fmt.Sprintf("%s-%s%s", formatBound(b.Min), formatBound(b.Max), b.unitSuffix())
	}
}

func (b Band) unitSuffix() string {
	switch b.Unit {
	case "":
		return ""
	case "%", "°F":
		return b.Unit
	default:
		return " " + b.Unit
	}
}

func (b Band) validate(name string) error {
	for _, v := range []float64{b.Min, b.Max, b.CriticalMin, b.CriticalMax} {
		if math.IsNaN(v) {
			return fmt.Errorf("vitals: %s band contains NaN", name)
		}
	}
	if !(b.CriticalMin <= b.Min && b.Min <= b.Max && b.Max <= b.CriticalMax) {
		return fmt.Errorf("vitals: %s band must satisfy criticalMin <= min <= max <= criticalMax", name)
	}
	return nil
}

func formatBound(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// Thresholds is the full per-channel table.
type Thresholds struct {
	HeartRate        Band `json:"heartRate"`
	Systolic         Band `json:"systolic"`
	Diastolic        Band `json:"diastolic"`
	Temperature      Band `json:"temperature"`
	OxygenSaturation Band `json:"oxygenSaturation"`
	StressLevel      Band `json:"stressLevel"`
}

// DefaultThresholds is the single source of truth for alerting bands.
// Stress level is on a 0-100 scale.
var DefaultThresholds = Thresholds{
	HeartRate:        Band{Min: 60, Max: 100, CriticalMin: 40, CriticalMax: 130, Unit: "bpm"},
	Systolic:         Band{Min: 90, Max: 140, CriticalMin: 70, CriticalMax: 180, Unit: "mmHg"},
	Diastolic:        Band{Min: 60, Max: 90, CriticalMin: 40, CriticalMax: 110, Unit: "mmHg"},
	Temperature:      Band{Min: 97.0, Max: 99.5, CriticalMin: 95.0, CriticalMax: 103.0, Unit: "°F"},
	OxygenSaturation: Band{Min: 95, Max: math.Inf(1), CriticalMin: 90, CriticalMax: math.Inf(1), Unit: "%"},
	StressLevel:      Band{Min: math.Inf(-1), Max: 70, CriticalMin: math.Inf(-1), CriticalMax: 85},
}

// Validate checks that every band is nested.
func (t Thresholds) Validate() error {
	bands := []struct {
		name string
		band Band
	}{
		{"heart rate", t.HeartRate},
		{"systolic", t.Systolic},
		{"diastolic", t.Diastolic},
		{"temperature", t.Temperature},
		{"oxygen saturation", t.OxygenSaturation},
		{"stress level", t.StressLevel},
	}
	for _, b := range bands {
		if err := b.band.validate(b.name); err != nil {
			return err
		}
	}
	return nil
}

func (t Thresholds) bloodPressureRange() string {
	return fmt.Sprintf("%s/%s mmHg",
		formatRange(t.Systolic), formatRange(t.Diastolic))
}

func formatRange(b Band) string {
	return fmt.Sprintf("%s-%s", formatBound(b.Min), formatBound(b.Max))
}
