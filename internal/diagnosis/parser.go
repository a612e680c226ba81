package diagnosis

import (
	"bufio"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	minAIConfidence = 60
	maxAIConfidence = 95
)

// ClampConfidence keeps AI confidence within [60, 95].
func ClampConfidence(c int) int {
	return clampInt(c, minAIConfidence, maxAIConfidence)
}

type aiPayload struct {
	Condition             string            `json:"condition"`
	Diagnosis             string            `json:"diagnosis"`
	Confidence            json.RawMessage   `json:"confidence"`
	Severity              string            `json:"severity"`
	Explanation           string            `json:"explanation"`
	Recommendations       []string          `json:"recommendations"`
	Treatment             []string          `json:"treatment"`
	DifferentialDiagnoses []json.RawMessage `json:"differentialDiagnoses"`
	RedFlags              []string          `json:"redFlags"`
	Prognosis             string            `json:"prognosis"`
	Prevention            []string          `json:"prevention"`
	SeekImmediateCare     *bool             `json:"seekImmediateCare"`
}

// parsed holds whatever could be extracted from the model output.
type parsed struct {
	condition     string
	confidence    int
	hasConfidence bool
	severity      Severity
	explanation   string
	prognosis     string
	seekCare      *bool
	lists         map[string][]string
	diffs         []Differential
}

// ParseAIResponse extracts a diagnosis from model output. It tries a JSON
// object first, then labelled lines. Anything missing is taken from the
// rule engine, confidence is clamped, and the result is tagged AI generated.
func ParseAIResponse(text string, symptoms []Symptom) Diagnosis {
	return parseAIResponseAt(text, symptoms, time.Now().UTC())
}

func parseAIResponseAt(text string, symptoms []Symptom, now time.Time) Diagnosis {
	p, ok := parseJSONPayload(text)
	if !ok {
		p = parseLabelledLines(text)
	}

	base := ruleBasedAt(symptoms, now)
	d := base
	if p.condition != "" {
		d.Condition = p.condition
	}
	if p.hasConfidence {
		d.Confidence = p.confidence
	}
	if p.severity.Valid() {
		d.Severity = p.severity
	}
	if p.explanation != "" {
		d.Explanation = p.explanation
	}
	if p.prognosis != "" {
		d.Prognosis = p.prognosis
	}
	if v := p.lists["recommendations"]; len(v) > 0 {
		d.Recommendations = v
	}
	if v := p.lists["treatment"]; len(v) > 0 {
		d.Treatment = v
	}
	if v := p.lists["redFlags"]; len(v) > 0 {
		d.RedFlags = v
	}
	if v := p.lists["prevention"]; len(v) > 0 {
		d.Prevention = v
	}
	if len(p.diffs) > 0 {
		d.DifferentialDiagnoses = p.diffs
	}
	if p.seekCare != nil {
		d.SeekImmediateCare = *p.seekCare
	}
	// the emergency gate is never downgraded by model output
	if base.SeekImmediateCare || d.Severity == SeverityCritical {
		d.SeekImmediateCare = true
	}

	d.Confidence = ClampConfidence(d.Confidence)
	d.AIGenerated = true
	d.Timestamp = now
	return fillDefaults(d)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func parseJSONPayload(text string) (parsed, bool) {
	candidate := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(candidate); len(m) == 2 {
		candidate = strings.TrimSpace(m[1])
	}
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return parsed{}, false
	}

	var payload aiPayload
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &payload); err != nil {
		return parsed{}, false
	}

	confidence, hasConfidence := rawNumber(payload.Confidence)
	p := parsed{
		condition:     strings.TrimSpace(firstNonEmpty(payload.Condition, payload.Diagnosis)),
		confidence:    confidencePercent(confidence),
		hasConfidence: hasConfidence,
		severity:      normalizeSeverity(payload.Severity),
		explanation:   strings.TrimSpace(payload.Explanation),
		prognosis:     strings.TrimSpace(payload.Prognosis),
		seekCare:      payload.SeekImmediateCare,
		lists: map[string][]string{
			"recommendations": cleanList(payload.Recommendations),
			"treatment":       cleanList(payload.Treatment),
			"redFlags":        cleanList(payload.RedFlags),
			"prevention":      cleanList(payload.Prevention),
		},
	}
	for _, raw := range payload.DifferentialDiagnoses {
		if diff, ok := parseDifferentialJSON(raw); ok {
			p.diffs = append(p.diffs, diff)
		}
	}
	return p, true
}

func parseDifferentialJSON(raw json.RawMessage) (Differential, bool) {
	var obj struct {
		Condition   string          `json:"condition"`
		Name        string          `json:"name"`
		Probability json.RawMessage `json:"probability"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		name := strings.TrimSpace(firstNonEmpty(obj.Condition, obj.Name))
		if name == "" {
			return Differential{}, false
		}
		prob, _ := rawNumber(obj.Probability)
		return Differential{Condition: name, Probability: clampInt(confidencePercent(prob), 0, 100)}, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseDifferentialLine(text)
	}
	return Differential{}, false
}

var (
	labelPattern  = regexp.MustCompile(`^\s*(?:[#*\-\d.]+\s*)*\**([A-Za-z][A-Za-z ]{1,40}?)\**\s*:\s*(.*)$`)
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	diffPattern   = regexp.MustCompile(`^(.*?)[\s(:\-–]+(\d{1,3})\s*%\)?\s*$`)
)

// labelKeys maps labels seen in free text to parsed fields.
var labelKeys = map[string]string{
	"condition":                "condition",
	"diagnosis":                "condition",
	"primary diagnosis":        "condition",
	"likely condition":         "condition",
	"confidence":               "confidence",
	"confidence level":         "confidence",
	"severity":                 "severity",
	"explanation":              "explanation",
	"prognosis":                "prognosis",
	"recommendations":          "recommendations",
	"recommendation":           "recommendations",
	"treatment":                "treatment",
	"treatments":               "treatment",
	"treatment options":        "treatment",
	"red flags":                "redFlags",
	"warning signs":            "redFlags",
	"prevention":               "prevention",
	"differential diagnoses":   "differentials",
	"differential diagnosis":   "differentials",
	"differentials":            "differentials",
	"seek immediate care":      "seekCare",
	"seek immediate attention": "seekCare",
}

func parseLabelledLines(text string) parsed {
	p := parsed{lists: map[string][]string{}}
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := labelPattern.FindStringSubmatch(line); len(m) == 3 {
			if key, ok := labelKeys[strings.ToLower(strings.TrimSpace(m[1]))]; ok {
				section = key
				if value := strings.TrimSpace(strings.Trim(m[2], "* ")); value != "" {
					p.apply(key, value)
				}
				continue
			}
		}
		if m := bulletPattern.FindStringSubmatch(line); len(m) == 2 {
			if section != "" {
				p.apply(section, strings.TrimSpace(m[1]))
			}
			continue
		}
		if section == "explanation" {
			p.explanation = strings.TrimSpace(p.explanation + " " + line)
		}
	}
	return p
}

func (p *parsed) apply(key, value string) {
	switch key {
	case "condition":
		if p.condition == "" {
			p.condition = value
		}
	case "confidence":
		if n := numberPattern.FindString(value); n != "" {
			f, _ := strconv.ParseFloat(n, 64)
			p.confidence = confidencePercent(f)
			p.hasConfidence = true
		}
	case "severity":
		p.severity = normalizeSeverity(value)
	case "explanation":
		p.explanation = strings.TrimSpace(p.explanation + " " + value)
	case "prognosis":
		p.prognosis = value
	case "seekCare":
		v := strings.HasPrefix(strings.ToLower(value), "y") || strings.HasPrefix(strings.ToLower(value), "true")
		p.seekCare = &v
	case "differentials":
		if diff, ok := parseDifferentialLine(value); ok {
			p.diffs = append(p.diffs, diff)
		}
	default:
		p.lists[key] = append(p.lists[key], value)
	}
}

func parseDifferentialLine(line string) (Differential, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Differential{}, false
	}
	if m := diffPattern.FindStringSubmatch(line); len(m) == 3 {
		name := strings.TrimSpace(strings.TrimRight(m[1], " (:-–"))
		if name != "" {
			return Differential{Condition: name, Probability: clampInt(parseInt(m[2]), 0, 100)}, true
		}
	}
	return Differential{Condition: line}, true
}

func normalizeSeverity(s string) Severity {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sev := range []Severity{SeverityCritical, SeveritySevere, SeverityModerate, SeverityMild} {
		if strings.Contains(s, string(sev)) {
			return sev
		}
	}
	return ""
}

// rawNumber reads a JSON number or a numeric string such as "85%".
func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n := numberPattern.FindString(s); n != "" {
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// confidencePercent treats values in (0, 1] as fractions.
func confidencePercent(f float64) int {
	if f > 0 && f <= 1 {
		f *= 100
	}
	return roundPercent(f)
}

func parseInt(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return roundPercent(f)
}

// roundPercent bounds f to [0, 100] before converting so huge values
// cannot wrap around int.
func roundPercent(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(f, 100))))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
