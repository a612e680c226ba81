package events

import "time"

// AlertRaisedV1 is emitted once per ingested reading that produced alerts.
type AlertRaisedV1 struct {
	PatientID     string       `json:"patient_id"`
	ReadingAt     time.Time    `json:"reading_at"`
	Alerts        []AlertEntry `json:"alerts"`
	RiskScore     int          `json:"risk_score"`
	RiskLevel     string       `json:"risk_level"`
	CareTeamPaged bool         `json:"care_team_paged"`
}

// AlertEntry is the wire form of one alert inside AlertRaisedV1.
type AlertEntry struct {
	AlertID   string `json:"alert_id"`
	Vital     string `json:"vital"`
	Severity  string `json:"severity"`
	Value     string `json:"value"`
	Threshold string `json:"threshold"`
}

func (AlertRaisedV1) EventType() string {
	return "vitals.alert.raised.v1"
}

// DiagnosisCompletedV1 is emitted after every completed symptom analysis.
type DiagnosisCompletedV1 struct {
	DiagnosisID       string    `json:"diagnosis_id"`
	PatientID         string    `json:"patient_id,omitempty"`
	Condition         string    `json:"condition"`
	Severity          string    `json:"severity"`
	Confidence        int       `json:"confidence"`
	AIGenerated       bool      `json:"ai_generated"`
	Provider          string    `json:"provider"`
	SeekImmediateCare bool      `json:"seek_immediate_care"`
	SymptomCount      int       `json:"symptom_count"`
	CompletedAt       time.Time `json:"completed_at"`
}

func (DiagnosisCompletedV1) EventType() string {
	return "diagnosis.completed.v1"
}
