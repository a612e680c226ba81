package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	httpmiddleware "github.com/wolfman30/telehealth-ai-platform/internal/http/middleware"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/internal/patients"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const testSecret = "router-secret"

type testEnv struct {
	router   http.Handler
	alerts   *alerts.MemoryStore
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	logger := logging.Default()
	registry := prometheus.NewRegistry()
	alertStore := alerts.NewMemoryStore(0)
	patientStore := patients.NewMemoryStore()

	vitalsSvc := wearables.NewService(wearables.NewMemoryHistoryStore(0), alertStore, logger,
		wearables.WithPatients(patientStore),
		wearables.WithMetrics(metrics.NewVitalsMetrics(registry)),
	)
	diagSvc := diagnosis.NewService(nil, logger,
		diagnosis.WithRecordStore(patientStore),
		diagnosis.WithMetrics(metrics.NewDiagnosisMetrics(registry)),
	)
	jobs := diagnosis.NewMemoryJobStore()

	cfg := &Config{
		Logger:             logger,
		VitalsHandler:      wearables.NewHandler(vitalsSvc, logger),
		AlertsHandler:      alerts.NewHandler(alertStore, alerts.NewHub(logger), logger),
		PatientsHandler:    patients.NewHandler(patientStore, logger),
		DiagnosisHandler:   diagnosis.NewHandler(diagSvc, jobs, nil, logger),
		ClinicianJWTSecret: testSecret,
		StatsGatherer:      registry,
		HealthChecks:       checks,
	}
	return &testEnv{router: New(cfg), alerts: alertStore, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func clinicianToken(t *testing.T) string {
	t.Helper()
	claims := httpmiddleware.ClinicianClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dr-house",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: httpmiddleware.RoleClinician,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestRouterVitalsFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"patientId":"p1","patientName":"Sam","deviceId":"ring","heartRate":72,
		"bloodPressure":{"systolic":185,"diastolic":80},"temperature":98.4,"oxygenSaturation":97,"stressLevel":10}`
	rec := env.do(t, http.MethodPost, "/api/vitals", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/patients/p1/vitals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"systolic":185`)

	rec = env.do(t, http.MethodGet, "/api/patients/p1/alerts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Alerts []vitals.VitalAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Alerts, 1)
	assert.Equal(t, vitals.VitalBloodPressure, listed.Alerts[0].Vital)

	rec = env.do(t, http.MethodGet, "/api/patients/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Sam"`)

	rec = env.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats metrics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.AlertsBySeverity["critical"])
}

func TestRouterAlertStatusRequiresClinician(t *testing.T) {
	env := newTestEnv(t, nil)
	alert := vitals.VitalAlert{ID: "a1", PatientID: "p1", Status: vitals.StatusActive, Severity: vitals.SeverityCritical}
	require.NoError(t, env.alerts.Append(context.Background(), "p1", alert))

	rec := env.do(t, http.MethodPatch, "/api/patients/p1/alerts/a1", `{"status":"acknowledged"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := http.Header{"Authorization": []string{"Bearer " + clinicianToken(t)}}
	rec = env.do(t, http.MethodPatch, "/api/patients/p1/alerts/a1", `{"status":"acknowledged"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"acknowledged"`)
}

func TestRouterDiagnosisRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/diagnoses", `{"patientId":"p2","symptoms":["cough","fever"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result diagnosis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, diagnosis.ProviderRuleBased, result.Provider)
	assert.False(t, result.Diagnosis.AIGenerated)

	rec = env.do(t, http.MethodGet, "/api/patients/p2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), result.Diagnosis.Condition)

	rec = env.do(t, http.MethodPost, "/api/diagnoses/jobs", `{"symptoms":["cough"]}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/diagnoses/jobs/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRateLimit(t *testing.T) {
	logger := logging.Default()
	router := New(&Config{
		Logger:        logger,
		RateLimiter:   httpmiddleware.NewRateLimiter(0.1, 1),
		StatsGatherer: prometheus.NewRegistry(),
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, health.Code, "health is outside the limited group")
}
