package wearables

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	p := newPipeline()
	h := NewHandler(p.svc, logging.Default())
	r := chi.NewRouter()
	r.Post("/api/vitals", h.Ingest)
	r.Get("/api/patients/{patientID}/vitals", h.Recent)
	return r
}

func TestHandler_IngestAndList(t *testing.T) {
	router := newTestRouter(t)

	body := `{"patientId":"p1","patientName":"Ada","deviceId":"watch-1","heartRate":135,
		"bloodPressure":{"systolic":120,"diastolic":80},"temperature":98.6,"oxygenSaturation":97,"stressLevel":20}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vitals", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "CRITICAL: Heart Rate for Ada is 135 bpm. Immediate medical attention required", res.Alerts[0].Message)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/p1/vitals?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"heartRate":135`)
}

func TestHandler_IngestValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vitals", strings.NewReader(`{"patientId":"p1","heartRate":70}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"bloodPressure", "temperature", "oxygenSaturation", "stressLevel"}, body.Fields)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vitals", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
