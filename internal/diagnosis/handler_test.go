package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

type analyzerFunc func(ctx context.Context, req Request) (Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

type recordingEnqueuer struct {
	jobIDs []string
	reqs   []Request
	err    error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobID string, req Request) error {
	if e.err != nil {
		return e.err
	}
	e.jobIDs = append(e.jobIDs, jobID)
	e.reqs = append(e.reqs, req)
	return nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/diagnoses", h.Analyze)
	r.Post("/api/diagnoses/jobs", h.EnqueueJob)
	r.Get("/api/diagnoses/jobs/{jobID}", h.GetJob)
	return r
}

func TestHandler_AnalyzeAcceptsMixedSymptomShapes(t *testing.T) {
	var got Request
	analyzer := analyzerFunc(func(_ context.Context, req Request) (Result, error) {
		got = req
		return Result{ID: "d1", State: StateComplete, Provider: ProviderRuleBased, Diagnosis: RuleBased(req.Symptoms)}, nil
	})
	router := newTestRouter(NewHandler(analyzer, nil, nil, logging.Default()))

	body := `{"patientId":" p1 ","symptoms":["cough",{"name":"fever","severity":"7"},"{\"name\":\"chills\",\"severity\":3}"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", got.PatientID)
	require.Len(t, got.Symptoms, 3)
	assert.Equal(t, "cough", got.Symptoms[0].Name)
	assert.Equal(t, 7, got.Symptoms[1].Severity)
	assert.Equal(t, "chills", got.Symptoms[2].Name)

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Upper Respiratory Infection", res.Diagnosis.Condition)
}

func TestHandler_AnalyzeEndToEnd(t *testing.T) {
	svc := NewService(llm.StubClient{}, logging.Default())
	router := newTestRouter(NewHandler(svc, nil, nil, logging.Default()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses", strings.NewReader(`{"symptoms":[]}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "No Symptoms Provided", res.Diagnosis.Condition)
	assert.Equal(t, 0, res.Diagnosis.Confidence)
}

func TestHandler_AnalyzeErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "bad json", body: `{"symptoms":`, code: http.StatusBadRequest},
		{name: "in progress", body: `{"patientId":"p1","symptoms":["cough"]}`, err: ErrAnalysisInProgress, code: http.StatusConflict},
		{name: "store failure", body: `{"patientId":"p1","symptoms":["cough"]}`, err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := analyzerFunc(func(context.Context, Request) (Result, error) {
				return Result{}, tc.err
			})
			router := newTestRouter(NewHandler(analyzer, nil, nil, logging.Default()))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses", strings.NewReader(tc.body)))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestHandler_EnqueueAndGetJob(t *testing.T) {
	jobs := NewMemoryJobStore()
	enqueuer := &recordingEnqueuer{}
	router := newTestRouter(NewHandler(analyzerFunc(nil), jobs, enqueuer, logging.Default()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses/jobs", strings.NewReader(`{"patientId":"p1","symptoms":["headache"]}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "pending", accepted["status"])
	require.Len(t, enqueuer.jobIDs, 1)
	assert.Equal(t, accepted["jobId"], enqueuer.jobIDs[0])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnoses/jobs/"+accepted["jobId"], nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "p1", job.PatientID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnoses/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_EnqueueJobValidation(t *testing.T) {
	router := newTestRouter(NewHandler(analyzerFunc(nil), nil, nil, logging.Default()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses/jobs", strings.NewReader(`{"symptoms":["cough"]}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	router = newTestRouter(NewHandler(analyzerFunc(nil), NewMemoryJobStore(), &recordingEnqueuer{}, logging.Default()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses/jobs", strings.NewReader(`{"symptoms":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	router = newTestRouter(NewHandler(analyzerFunc(nil), NewMemoryJobStore(), &recordingEnqueuer{err: errors.New("queue down")}, logging.Default()))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/diagnoses/jobs", strings.NewReader(`{"symptoms":["cough"]}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
