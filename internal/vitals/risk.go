package vitals

// RiskLevel buckets an emergency risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment summarises how urgently a reading needs a clinician.
type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// Emergency reports whether the assessment should page the care team.
func (r RiskAssessment) Emergency() bool {
	return r.Level == RiskHigh || r.Level == RiskCritical
}

// Assess scores a reading for emergency notification. Stress uses the same
// 0-100 scale as the threshold table.
func Assess(v WearableVitals) RiskAssessment {
	score := 0
	var factors []string
	add := func(points int, factor string) {
		score += points
		factors = append(factors, factor)
	}

	if v.HeartRate > 120 || v.HeartRate < 50 {
		add(30, "abnormal heart rate")
	}
	if v.BloodPressure.Systolic > 160 || v.BloodPressure.Diastolic > 100 {
		add(25, "hypertension")
	}
	if v.BloodPressure.Systolic < 90 {
		add(25, "hypotension")
	}
	if v.OxygenSaturation < 92 {
		add(35, "low oxygen saturation")
	}
	if v.Temperature > 101.5 || v.Temperature < 96 {
		add(20, "abnormal temperature")
	}
	if v.StressLevel > 80 {
		add(15, "elevated stress")
	}

	if score > 100 {
		score = 100
	}
	return RiskAssessment{Score: score, Level: riskLevel(score), Factors: factors}
}

func riskLevel(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}
