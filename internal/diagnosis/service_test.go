package diagnosis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

type fakeLLM struct {
	resp    llm.Response
	err     error
	block   chan struct{}
	mu      sync.Mutex
	calls   int
	lastReq llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

type fakeRecords struct {
	mu       sync.Mutex
	appended map[string][]Diagnosis
	err      error
}

func (f *fakeRecords) AppendDiagnosis(_ context.Context, patientID string, d Diagnosis) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appended == nil {
		f.appended = map[string][]Diagnosis{}
	}
	f.appended[patientID] = append(f.appended[patientID], d)
	return nil
}

func newTestService(client llm.Client, opts ...ServiceOption) *Service {
	return NewService(client, logging.Default(), opts...)
}

func TestService_AIPath(t *testing.T) {
	client := &fakeLLM{resp: llm.Response{Text: `{"condition":"Migraine","confidence":88,"severity":"moderate"}`, Provider: "bedrock"}}
	records := &fakeRecords{}
	svc := newTestService(client, WithRecordStore(records), WithModel("model-x"))

	res, err := svc.Analyze(context.Background(), Request{PatientID: "p1", Symptoms: []Symptom{{Name: "headache", Severity: 6}}})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, "bedrock", res.Provider)
	assert.True(t, res.Diagnosis.AIGenerated)
	assert.Equal(t, "Migraine", res.Diagnosis.Condition)
	assert.Equal(t, 88, res.Diagnosis.Confidence)
	assert.Equal(t, "model-x", client.lastReq.Model)
	require.Len(t, client.lastReq.Messages, 1)
	assert.Contains(t, client.lastReq.Messages[0].Content, "headache (severity 6/10)")
	require.Len(t, records.appended["p1"], 1)
	assert.Equal(t, StateIdle, svc.State("p1"))
}

func TestService_FallsBackOnAIError(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("provider down")})
	res, err := svc.Analyze(context.Background(), Request{Symptoms: []Symptom{{Name: "severe chest pain"}}})
	require.NoError(t, err)
	assert.Equal(t, ProviderRuleBased, res.Provider)
	assert.False(t, res.Diagnosis.AIGenerated)
	assert.Equal(t, "Emergency Medical Condition", res.Diagnosis.Condition)
	assert.True(t, res.Diagnosis.SeekImmediateCare)
}

func TestService_FallsBackOnEmptyAIText(t *testing.T) {
	svc := newTestService(&fakeLLM{resp: llm.Response{Text: "   "}})
	res, err := svc.Analyze(context.Background(), Request{Symptoms: []Symptom{{Name: "cough"}, {Name: "fever"}}})
	require.NoError(t, err)
	assert.False(t, res.Diagnosis.AIGenerated)
	assert.Equal(t, "Upper Respiratory Infection", res.Diagnosis.Condition)
}

func TestService_NilClientUsesRules(t *testing.T) {
	svc := NewService(nil, nil)
	res, err := svc.Analyze(context.Background(), Request{Symptoms: []Symptom{{Name: "mild headache"}}})
	require.NoError(t, err)
	assert.Equal(t, "General Health Assessment", res.Diagnosis.Condition)
}

func TestService_TimeoutFallsBack(t *testing.T) {
	client := &fakeLLM{block: make(chan struct{})}
	svc := newTestService(client, WithTimeout(20*time.Millisecond))
	res, err := svc.Analyze(context.Background(), Request{Symptoms: []Symptom{{Name: "fatigue", Severity: 9}}})
	require.NoError(t, err)
	assert.False(t, res.Diagnosis.AIGenerated)
	assert.Equal(t, SeverityCritical, res.Diagnosis.Severity)
}

func TestService_EmptySymptomsSkipsEngines(t *testing.T) {
	client := &fakeLLM{}
	records := &fakeRecords{}
	svc := newTestService(client, WithRecordStore(records))
	res, err := svc.Analyze(context.Background(), Request{PatientID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "No Symptoms Provided", res.Diagnosis.Condition)
	assert.Equal(t, ProviderNone, res.Provider)
	assert.Equal(t, 0, client.calls)
	assert.Empty(t, records.appended)
}

func TestService_RecordStoreErrorIsReturned(t *testing.T) {
	svc := newTestService(llm.StubClient{}, WithRecordStore(&fakeRecords{err: errors.New("db down")}))
	res, err := svc.Analyze(context.Background(), Request{PatientID: "p1", Symptoms: []Symptom{{Name: "rash"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, StateIdle, svc.State("p1"))
}

func TestService_ObserversAreBestEffort(t *testing.T) {
	var got []Record
	failing := ObserverFunc(func(context.Context, Record) error { return errors.New("s3 down") })
	capture := ObserverFunc(func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return nil
	})
	svc := newTestService(llm.StubClient{}, WithObserver("archive", failing), WithObserver("audit", capture), WithObserver("nil", nil))

	res, err := svc.Analyze(context.Background(), Request{PatientID: "p2", Symptoms: []Symptom{{Name: "cough"}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.ID, got[0].ID)
	assert.Equal(t, "p2", got[0].PatientID)
	assert.Equal(t, ProviderRuleBased, got[0].Provider)
	assert.Len(t, got[0].Symptoms, 1)
}

func TestService_RejectsConcurrentAnalysisForSamePatient(t *testing.T) {
	client := &fakeLLM{block: make(chan struct{}), resp: llm.Response{Text: `{"condition":"Cold"}`}}
	svc := newTestService(client)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(context.Background(), Request{PatientID: "p1", Symptoms: []Symptom{{Name: "sneezing"}}})
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.State("p1") == StateAnalyzing }, time.Second, 5*time.Millisecond)
	_, err := svc.Analyze(context.Background(), Request{PatientID: "p1", Symptoms: []Symptom{{Name: "sneezing"}}})
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	// other patients are unaffected
	other := newTestService(llm.StubClient{})
	_, err = other.Analyze(context.Background(), Request{PatientID: "p2", Symptoms: []Symptom{{Name: "sneezing"}}})
	assert.NoError(t, err)

	close(client.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, svc.State("p1"))
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewDiagnosisMetrics(reg)
	svc := newTestService(&fakeLLM{err: errors.New("down")}, WithMetrics(m))
	_, err := svc.Analyze(context.Background(), Request{Symptoms: []Symptom{{Name: "cough"}}})
	require.NoError(t, err)

	stats := metrics.Snapshot(reg)
	assert.Equal(t, int64(1), stats.DiagnosesBySource[ProviderRuleBased])
}

type disclaimerFunc func(ctx context.Context, patientID string, d Diagnosis) string

func (f disclaimerFunc) DisclaimerFor(ctx context.Context, patientID string, d Diagnosis) string {
	return f(ctx, patientID, d)
}

func TestService_AttachesDisclaimer(t *testing.T) {
	svc := newTestService(nil, WithDisclaimer(disclaimerFunc(func(_ context.Context, patientID string, d Diagnosis) string {
		if d.AIGenerated {
			return "ai notice"
		}
		return "rules notice for " + patientID
	})))

	res, err := svc.Analyze(context.Background(), Request{PatientID: "p1", Symptoms: []Symptom{{Name: "cough", Severity: 3}}})
	require.NoError(t, err)
	assert.Equal(t, "rules notice for p1", res.Disclaimer)
}
