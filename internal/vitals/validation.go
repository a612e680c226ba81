package vitals

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidationError lists the reading fields that were missing or malformed.
type ValidationError struct {
	Fields []string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vitals: invalid reading: %s", strings.Join(e.Fields, ", "))
}

// BloodPressureInput is the wire form of a blood pressure pair.
type BloodPressureInput struct {
	Systolic  *float64 `json:"systolic"`
	Diastolic *float64 `json:"diastolic"`
}

// ReadingInput is the wire form of a wearable sync. Pointer fields let
// Validate tell a missing channel from a zero reading.
type ReadingInput struct {
	PatientID        string              `json:"patientId"`
	PatientName      string              `json:"patientName,omitempty"`
	DeviceID         string              `json:"deviceId"`
	Timestamp        *time.Time          `json:"timestamp,omitempty"`
	HeartRate        *float64            `json:"heartRate"`
	BloodPressure    *BloodPressureInput `json:"bloodPressure"`
	Temperature      *float64            `json:"temperature"`
	OxygenSaturation *float64            `json:"oxygenSaturation"`
	StressLevel      *float64            `json:"stressLevel"`
	Steps            int                 `json:"steps,omitempty"`
	Calories         int                 `json:"calories,omitempty"`
	BatteryLevel     int                 `json:"batteryLevel,omitempty"`
}

// Validate checks presence and finiteness of every channel. Integer channels
// must also fit in 32 bits; beyond that, values are not range checked and out
// of range readings are the engine's concern.
func (in ReadingInput) Validate() error {
	var fields []string
	if strings.TrimSpace(in.PatientID) == "" {
		fields = append(fields, "patientId")
	}
	check := func(name string, v *float64) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			fields = append(fields, name)
		}
	}
	checkInt := func(name string, v *float64) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || !fitsInt32(*v) {
			fields = append(fields, name)
		}
	}
	checkInt("heartRate", in.HeartRate)
	if in.BloodPressure == nil {
		fields = append(fields, "bloodPressure")
	} else {
		checkInt("bloodPressure.systolic", in.BloodPressure.Systolic)
		checkInt("bloodPressure.diastolic", in.BloodPressure.Diastolic)
	}
	check("temperature", in.Temperature)
	checkInt("oxygenSaturation", in.OxygenSaturation)
	check("stressLevel", in.StressLevel)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ToVitals validates the input and converts it to a reading. now stamps
// readings that arrive without a timestamp.
func (in ReadingInput) ToVitals(now time.Time) (WearableVitals, error) {
	if err := in.Validate(); err != nil {
		return WearableVitals{}, err
	}
	ts := now.UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}
	return WearableVitals{
		PatientID: strings.TrimSpace(in.PatientID),
		DeviceID:  in.DeviceID,
		Timestamp: ts,
		HeartRate: roundInt(*in.HeartRate),
		BloodPressure: BloodPressure{
			Systolic:  roundInt(*in.BloodPressure.Systolic),
			Diastolic: roundInt(*in.BloodPressure.Diastolic),
		},
		Temperature:      *in.Temperature,
		OxygenSaturation: roundInt(*in.OxygenSaturation),
		StressLevel:      *in.StressLevel,
		Steps:            in.Steps,
		Calories:         in.Calories,
		BatteryLevel:     in.BatteryLevel,
	}, nil
}

// fitsInt32 reports whether v rounds to a value the INTEGER columns of
// vital_readings can hold.
func fitsInt32(v float64) bool {
	r := math.Round(v)
	return r >= math.MinInt32 && r <= math.MaxInt32
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
