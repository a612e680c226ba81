package bootstrap

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/internal/patients"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func ptr(v float64) *float64 { return &v }

func TestBuildStores_MemoryWithoutDatabase(t *testing.T) {
	stores := BuildStores(nil, &appconfig.Config{VitalsHistoryCap: 10})
	assert.IsType(t, &wearables.MemoryHistoryStore{}, stores.History)
	assert.IsType(t, &patients.MemoryStore{}, stores.Patients)
	assert.Nil(t, stores.Outbox)
	assert.Nil(t, stores.Processed)
}

func TestBuildVitalsService_RaisesAlertsAndUpdatesPatient(t *testing.T) {
	logger := logging.Default()
	cfg := &appconfig.Config{VitalsHistoryCap: 10, AlertHistoryCap: 10}
	stores := BuildStores(nil, cfg)
	alertStore := alerts.NewMemoryStore(cfg.AlertHistoryCap)

	svc := BuildVitalsService(cfg, aws.Config{}, stores, alertStore, nil, nil, logger)
	res, err := svc.Ingest(context.Background(), vitals.ReadingInput{
		PatientID:        "p-1",
		PatientName:      "Ada",
		HeartRate:        ptr(135),
		BloodPressure:    &vitals.BloodPressureInput{Systolic: ptr(118), Diastolic: ptr(76)},
		Temperature:      ptr(98.6),
		OxygenSaturation: ptr(98),
		StressLevel:      ptr(20),
	})
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, vitals.SeverityCritical, res.Alerts[0].Severity)
	assert.False(t, res.CareTeamNotified)

	patient, err := stores.Patients.Get(context.Background(), "p-1")
	require.NoError(t, err)
	require.NotNil(t, patient.LatestVitals)
	assert.Equal(t, 135, patient.LatestVitals.HeartRate)
}

func TestBuildDiagnosisService_RuleBasedWithDisclaimer(t *testing.T) {
	stores := BuildStores(nil, &appconfig.Config{})
	svc := BuildDiagnosisService(nil, aws.Config{}, llm.StubClient{}, DiagnosisDeps{Records: stores.Patients}, nil)

	res, err := svc.Analyze(context.Background(), diagnosis.Request{
		PatientID: "p-2",
		Symptoms:  []diagnosis.Symptom{{Name: "cough"}, {Name: "fever"}},
	})
	require.NoError(t, err)
	assert.Equal(t, diagnosis.ProviderRuleBased, res.Provider)
	assert.NotEmpty(t, res.Disclaimer)

	patient, err := stores.Patients.Get(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Len(t, patient.Diagnoses, 1)
}
