package diagnosis

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// EmergencyKeywords short-circuit the rule engine to the emergency bucket.
var EmergencyKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"severe",
	"unbearable",
	"emergency",
}

const (
	conditionEmergency   = "Emergency Medical Condition"
	conditionRespiratory = "Upper Respiratory Infection"
	conditionGeneral     = "General Health Assessment"
	conditionNoSymptoms  = "No Symptoms Provided"

	emergencySeverityAverage = 9.0
	severeSeverityAverage    = 7.0
	moderateSeverityAverage  = 4.0
)

// RuleBased classifies symptoms without the AI provider. The emergency gate
// fires on any emergency keyword or an average severity of 9 or more.
func RuleBased(symptoms []Symptom) Diagnosis {
	return ruleBasedAt(symptoms, time.Now().UTC())
}

func ruleBasedAt(symptoms []Symptom, now time.Time) Diagnosis {
	text := symptomText(symptoms)
	avg, hasSeverity := AverageSeverity(symptoms)

	var d Diagnosis
	switch {
	case len(MatchedEmergencyKeywords(text)) > 0 || (hasSeverity && avg >= emergencySeverityAverage):
		d = emergencyDiagnosis()
	case strings.Contains(text, "cough") && strings.Contains(text, "fever"):
		d = respiratoryDiagnosis()
		if hasSeverity && avg >= severeSeverityAverage {
			d.Severity = SeveritySevere
		}
	default:
		d = generalDiagnosis(severityFromAverage(avg))
	}
	d.Timestamp = now
	return fillDefaults(d)
}

// NoSymptomsDiagnosis is returned instead of running either engine when a
// request has no symptoms.
func NoSymptomsDiagnosis() Diagnosis {
	return fillDefaults(Diagnosis{
		Condition:       conditionNoSymptoms,
		Confidence:      0,
		Severity:        SeverityMild,
		Explanation:     "No symptoms were provided, so no assessment could be made.",
		Recommendations: []string{"Add at least one symptom and submit again"},
		Prognosis:       "Not assessed",
		Timestamp:       time.Now().UTC(),
	})
}

// AverageSeverity returns the mean of specified severities. ok is false when
// no symptom carries a severity.
func AverageSeverity(symptoms []Symptom) (avg float64, ok bool) {
	rated := lo.FilterMap(symptoms, func(s Symptom, _ int) (int, bool) {
		return s.Severity, s.Severity > 0
	})
	if len(rated) == 0 {
		return 0, false
	}
	return float64(lo.Sum(rated)) / float64(len(rated)), true
}

// MatchedEmergencyKeywords returns the emergency keywords found in text.
func MatchedEmergencyKeywords(text string) []string {
	text = strings.ToLower(text)
	return lo.Filter(EmergencyKeywords, func(k string, _ int) bool {
		return strings.Contains(text, k)
	})
}

func symptomText(symptoms []Symptom) string {
	parts := lo.FlatMap(symptoms, func(s Symptom, _ int) []string {
		return []string{s.Name, s.Description}
	})
	return strings.ToLower(strings.Join(lo.Compact(parts), " "))
}

func severityFromAverage(avg float64) Severity {
	switch {
	case avg >= severeSeverityAverage:
		return SeveritySevere
	case avg >= moderateSeverityAverage:
		return SeverityModerate
	default:
		return SeverityMild
	}
}

func emergencyDiagnosis() Diagnosis {
	return Diagnosis{
		Condition:   conditionEmergency,
		Confidence:  95,
		Severity:    SeverityCritical,
		Explanation: "The reported symptoms include warning signs that can indicate a life threatening condition and need immediate evaluation.",
		Recommendations: []string{
			"Call emergency services (911) immediately",
			"Do not drive yourself to the hospital",
			"Stay with someone until help arrives",
			"Have your medication list ready for responders",
		},
		Treatment: []string{
			"Emergency department evaluation",
			"Continuous vital sign monitoring",
		},
		DifferentialDiagnoses: []Differential{
			{Condition: "Acute coronary syndrome", Probability: 35},
			{Condition: "Pulmonary embolism", Probability: 20},
			{Condition: "Severe asthma exacerbation", Probability: 15},
			{Condition: "Anaphylaxis", Probability: 10},
		},
		RedFlags: []string{
			"Chest pain or pressure",
			"Difficulty breathing or shortness of breath",
			"Loss of consciousness or confusion",
			"Pain that is severe or unbearable",
		},
		Prognosis:         "Depends on prompt emergency care",
		Prevention:        []string{"Follow up with your physician after emergency treatment"},
		SeekImmediateCare: true,
	}
}

func respiratoryDiagnosis() Diagnosis {
	return Diagnosis{
		Condition:   conditionRespiratory,
		Confidence:  82,
		Severity:    SeverityModerate,
		Explanation: "Cough together with fever is most often caused by a viral infection of the upper airways.",
		Recommendations: []string{
			"Rest and stay well hydrated",
			"Monitor your temperature twice a day",
			"Contact your doctor if symptoms last more than 7 days",
		},
		Treatment: []string{
			"Acetaminophen or ibuprofen for fever",
			"Warm fluids and honey for cough",
			"Saline nasal spray",
		},
		DifferentialDiagnoses: []Differential{
			{Condition: "Influenza", Probability: 30},
			{Condition: "COVID-19", Probability: 20},
			{Condition: "Acute bronchitis", Probability: 15},
			{Condition: "Pneumonia", Probability: 10},
		},
		RedFlags: []string{
			"Fever above 103°F",
			"Shortness of breath",
			"Coughing up blood",
			"Symptoms worsening after initial improvement",
		},
		Prognosis: "Most cases resolve within 7 to 10 days",
		Prevention: []string{
			"Wash hands frequently",
			"Stay up to date on vaccinations",
			"Avoid close contact with sick people",
		},
	}
}

func generalDiagnosis(sev Severity) Diagnosis {
	return Diagnosis{
		Condition:   conditionGeneral,
		Confidence:  70,
		Severity:    sev,
		Explanation: "The reported symptoms do not match a specific pattern. A clinician can provide a more precise assessment.",
		Recommendations: []string{
			"Monitor your symptoms and note any changes",
			"Schedule an appointment with your primary care provider",
			"Rest and stay hydrated",
		},
		Treatment: []string{
			"Symptomatic relief as appropriate",
			"Over the counter pain relief if needed",
		},
		DifferentialDiagnoses: []Differential{
			{Condition: "Viral syndrome", Probability: 25},
			{Condition: "Stress related symptoms", Probability: 20},
			{Condition: "Dehydration", Probability: 15},
		},
		RedFlags: []string{
			"Symptoms that rapidly worsen",
			"High fever",
			"New chest pain or difficulty breathing",
		},
		Prognosis: "Generally good with rest and monitoring",
		Prevention: []string{
			"Maintain regular sleep",
			"Eat a balanced diet",
			"Exercise regularly",
		},
	}
}

// fillDefaults guarantees every list field is non-empty.
func fillDefaults(d Diagnosis) Diagnosis {
	if !d.Severity.Valid() {
		d.Severity = SeverityMild
	}
	if strings.TrimSpace(d.Explanation) == "" {
		d.Explanation = "Assessment based on the reported symptoms."
	}
	if strings.TrimSpace(d.Prognosis) == "" {
		d.Prognosis = "Consult a healthcare provider for a prognosis."
	}
	if len(d.Recommendations) == 0 {
		d.Recommendations = []string{"Consult a healthcare provider for personalized advice"}
	}
	if len(d.Treatment) == 0 {
		d.Treatment = []string{"Treatment should be determined by a healthcare provider"}
	}
	if len(d.DifferentialDiagnoses) == 0 {
		d.DifferentialDiagnoses = []Differential{{Condition: "Further evaluation needed", Probability: 50}}
	}
	if len(d.RedFlags) == 0 {
		d.RedFlags = []string{"Seek immediate care if symptoms suddenly worsen"}
	}
	if len(d.Prevention) == 0 {
		d.Prevention = []string{"Maintain a healthy lifestyle and attend regular checkups"}
	}
	return d
}
