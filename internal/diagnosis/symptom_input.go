package diagnosis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const maxSymptomEncodingDepth = 3

// SymptomInput accepts the loose symptom shapes clients send: a plain
// string, an object, or a JSON string holding either of those.
type SymptomInput struct {
	symptom Symptom
}

type symptomObject struct {
	Name        string          `json:"name"`
	Symptom     string          `json:"symptom"`
	Severity    json.RawMessage `json:"severity"`
	Duration    string          `json:"duration"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Timestamp   *time.Time      `json:"timestamp"`
}

// UnmarshalJSON normalises every accepted shape to a Symptom.
func (s *SymptomInput) UnmarshalJSON(data []byte) error {
	sym, err := decodeSymptom(data, 0)
	if err != nil {
		return err
	}
	s.symptom = sym
	return nil
}

// MarshalJSON writes the normalised object form.
func (s SymptomInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.symptom)
}

// Symptom returns the normalised value.
func (s SymptomInput) Symptom() Symptom {
	return s.symptom
}

// NewSymptomInput wraps an already canonical symptom.
func NewSymptomInput(sym Symptom) SymptomInput {
	return SymptomInput{symptom: sym}
}

// NormalizeSymptoms unwraps inputs, dropping nothing.
func NormalizeSymptoms(inputs []SymptomInput) []Symptom {
	out := make([]Symptom, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, in.symptom)
	}
	return out
}

func decodeSymptom(data []byte, depth int) (Symptom, error) {
	if depth > maxSymptomEncodingDepth {
		return Symptom{}, errors.New("diagnosis: symptom nested too deeply")
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Symptom{}, errors.New("diagnosis: empty symptom")
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Symptom{}, fmt.Errorf("diagnosis: decode symptom string: %w", err)
		}
		text = strings.TrimSpace(text)
		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, `"`) {
			if json.Valid([]byte(text)) {
				return decodeSymptom([]byte(text), depth+1)
			}
		}
		if text == "" {
			return Symptom{}, errors.New("diagnosis: symptom name is required")
		}
		return Symptom{Name: text}, nil
	case '{':
		var obj symptomObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Symptom{}, fmt.Errorf("diagnosis: decode symptom object: %w", err)
		}
		return obj.toSymptom()
	default:
		return Symptom{}, fmt.Errorf("diagnosis: unsupported symptom value %s", truncate(string(trimmed), 32))
	}
}

func (o symptomObject) toSymptom() (Symptom, error) {
	name := strings.TrimSpace(o.Name)
	if name == "" {
		name = strings.TrimSpace(o.Symptom)
	}
	desc := strings.TrimSpace(o.Description)
	if name == "" && desc == "" {
		return Symptom{}, errors.New("diagnosis: symptom name is required")
	}
	severity, err := parseSeverity(o.Severity)
	if err != nil {
		return Symptom{}, err
	}
	sym := Symptom{
		Name:        name,
		Severity:    severity,
		Duration:    strings.TrimSpace(o.Duration),
		Location:    strings.TrimSpace(o.Location),
		Description: desc,
	}
	if o.Timestamp != nil {
		sym.Timestamp = o.Timestamp.UTC()
	}
	return sym, nil
}

// parseSeverity accepts a number or numeric string and clamps it to 1-10.
// Missing or null severity stays unspecified.
func parseSeverity(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		var text string
		if strErr := json.Unmarshal(raw, &text); strErr != nil {
			return 0, fmt.Errorf("diagnosis: invalid severity %s", raw)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
		if _, scanErr := fmt.Sscanf(text, "%g", &num); scanErr != nil {
			return 0, fmt.Errorf("diagnosis: invalid severity %q", text)
		}
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, fmt.Errorf("diagnosis: invalid severity %s", raw)
	}
	return clampInt(int(math.Round(num)), 1, 10), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
