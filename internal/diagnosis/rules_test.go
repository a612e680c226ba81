package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertListsFilled(t *testing.T, d Diagnosis) {
	t.Helper()
	assert.NotEmpty(t, d.Recommendations, "recommendations")
	assert.NotEmpty(t, d.Treatment, "treatment")
	assert.NotEmpty(t, d.DifferentialDiagnoses, "differentials")
	assert.NotEmpty(t, d.RedFlags, "red flags")
	assert.NotEmpty(t, d.Prevention, "prevention")
}

func TestRuleBased_EmergencyKeyword(t *testing.T) {
	d := RuleBased([]Symptom{{Name: "severe chest pain"}})
	assert.Equal(t, "Emergency Medical Condition", d.Condition)
	assert.Equal(t, SeverityCritical, d.Severity)
	assert.True(t, d.SeekImmediateCare)
	assert.Equal(t, 95, d.Confidence)
	assert.False(t, d.AIGenerated)
	assertListsFilled(t, d)
}

func TestRuleBased_EmergencyKeywordInDescription(t *testing.T) {
	d := RuleBased([]Symptom{{Name: "Headache", Description: "the pain is UNBEARABLE", Severity: 2}})
	assert.Equal(t, "Emergency Medical Condition", d.Condition)
}

func TestRuleBased_Respiratory(t *testing.T) {
	d := RuleBased([]Symptom{{Name: "cough"}, {Name: "fever"}})
	assert.Equal(t, "Upper Respiratory Infection", d.Condition)
	assert.Equal(t, SeverityModerate, d.Severity)
	assert.Equal(t, 82, d.Confidence)
	assert.False(t, d.SeekImmediateCare)
	assertListsFilled(t, d)
}

func TestRuleBased_RespiratoryRaisedBySeverity(t *testing.T) {
	d := RuleBased([]Symptom{{Name: "cough", Severity: 8}, {Name: "fever", Severity: 7}})
	assert.Equal(t, "Upper Respiratory Infection", d.Condition)
	assert.Equal(t, SeveritySevere, d.Severity)
	assert.False(t, d.SeekImmediateCare)
}

func TestRuleBased_General(t *testing.T) {
	d := RuleBased([]Symptom{{Name: "mild headache"}})
	assert.Equal(t, "General Health Assessment", d.Condition)
	assert.Equal(t, SeverityMild, d.Severity)
	assert.Equal(t, 70, d.Confidence)
	assert.False(t, d.SeekImmediateCare)
	assertListsFilled(t, d)
}

func TestRuleBased_SeverityAverage(t *testing.T) {
	cases := []struct {
		name       string
		severities []int
		want       Severity
		seekCare   bool
	}{
		{name: "avg 9 is critical", severities: []int{9, 9, 9}, want: SeverityCritical, seekCare: true},
		{name: "avg 10", severities: []int{10}, want: SeverityCritical, seekCare: true},
		{name: "avg 7 is severe", severities: []int{7, 7}, want: SeveritySevere},
		{name: "avg 8.5 is severe", severities: []int{8, 9}, want: SeveritySevere},
		{name: "avg 4 is moderate", severities: []int{4, 4}, want: SeverityModerate},
		{name: "avg 3.5 is mild", severities: []int{3, 4}, want: SeverityMild},
		{name: "unspecified ignored", severities: []int{0, 9, 9}, want: SeverityCritical, seekCare: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			symptoms := make([]Symptom, 0, len(tc.severities))
			for _, sev := range tc.severities {
				symptoms = append(symptoms, Symptom{Name: "fatigue", Severity: sev})
			}
			d := RuleBased(symptoms)
			assert.Equal(t, tc.want, d.Severity)
			assert.Equal(t, tc.seekCare, d.SeekImmediateCare)
			if tc.seekCare {
				assert.Equal(t, 95, d.Confidence)
			} else {
				assert.Equal(t, 70, d.Confidence)
			}
		})
	}
}

func TestRuleBased_EmptyInputStillDefined(t *testing.T) {
	d := RuleBased(nil)
	assert.Equal(t, "General Health Assessment", d.Condition)
	assertListsFilled(t, d)
}

func TestNoSymptomsDiagnosis(t *testing.T) {
	d := NoSymptomsDiagnosis()
	assert.Equal(t, "No Symptoms Provided", d.Condition)
	assert.False(t, d.AIGenerated)
	assertListsFilled(t, d)
}

func TestAverageSeverity(t *testing.T) {
	avg, ok := AverageSeverity([]Symptom{{Severity: 2}, {Severity: 0}, {Severity: 6}})
	assert.True(t, ok)
	assert.Equal(t, 4.0, avg)

	_, ok = AverageSeverity([]Symptom{{Name: "x"}})
	assert.False(t, ok)
}

func TestMatchedEmergencyKeywords(t *testing.T) {
	assert.Equal(t, []string{"chest pain", "severe"}, MatchedEmergencyKeywords("Severe CHEST PAIN"))
	assert.Empty(t, MatchedEmergencyKeywords("runny nose"))
}
