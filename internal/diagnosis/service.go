package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// RecordStore appends diagnoses to the patient record.
type RecordStore interface {
	AppendDiagnosis(ctx context.Context, patientID string, d Diagnosis) error
}

// Observer receives completed analyses. Observer errors are logged, never returned.
type Observer interface {
	DiagnosisCompleted(ctx context.Context, rec Record) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec Record) error

func (f ObserverFunc) DiagnosisCompleted(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Request is one analysis submission.
type Request struct {
	PatientID string    `json:"patientId,omitempty"`
	Symptoms  []Symptom `json:"symptoms"`
}

// Result is the outcome of an analysis.
type Result struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId,omitempty"`
	State     State     `json:"state"`
	Provider  string    `json:"provider"`
	Diagnosis Diagnosis `json:"diagnosis"`
	// Disclaimer is attached when a disclaimer source is configured.
	Disclaimer string `json:"disclaimer,omitempty"`
}

// DisclaimerSource returns the notice shown alongside a diagnosis.
type DisclaimerSource interface {
	DisclaimerFor(ctx context.Context, patientID string, d Diagnosis) string
}

var errEmptyResponse = errors.New("diagnosis: empty AI response")

const (
	ProviderRuleBased = "rule_based"
	ProviderNone      = "none"
)

type namedObserver struct {
	name     string
	observer Observer
}

// Service runs the AI provider with the rule engine as fallback.
type Service struct {
	client    llm.Client
	model     string
	timeout   time.Duration
	maxTokens int32
	records   RecordStore
	observers []namedObserver
	disclaim  DisclaimerSource
	metrics   *metrics.DiagnosisMetrics
	logger    *logging.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]State
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithModel sets the provider model id passed on each request.
func WithModel(model string) ServiceOption {
	return func(s *Service) {
		s.model = strings.TrimSpace(model)
	}
}

// WithTimeout bounds each AI call.
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithMaxTokens(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = int32(n)
		}
	}
}

// WithRecordStore persists diagnoses to the patient record.
func WithRecordStore(store RecordStore) ServiceOption {
	return func(s *Service) {
		s.records = store
	}
}

// WithObserver registers a best effort sink such as the archive or audit log.
func WithObserver(name string, o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, namedObserver{name: name, observer: o})
		}
	}
}

// WithDisclaimer attaches a notice to every completed analysis.
func WithDisclaimer(d DisclaimerSource) ServiceOption {
	return func(s *Service) {
		s.disclaim = d
	}
}

func WithMetrics(m *metrics.DiagnosisMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService builds a Service. A nil client always takes the rule based path.
func NewService(client llm.Client, logger *logging.Logger, opts ...ServiceOption) *Service {
	if client == nil {
		client = llm.StubClient{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		client:    client,
		timeout:   20 * time.Second,
		maxTokens: 1200,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		inflight:  map[string]State{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the lifecycle stage for a patient.
func (s *Service) State(patientID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.inflight[patientID]; ok {
		return st
	}
	return StateIdle
}

// Analyze runs one analysis. AI failures are absorbed by the rule engine; the
// only returned errors are ErrAnalysisInProgress and patient record failures.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	result := Result{ID: uuid.NewString(), PatientID: strings.TrimSpace(req.PatientID)}

	if len(req.Symptoms) == 0 {
		result.State = StateComplete
		result.Provider = ProviderNone
		result.Diagnosis = NoSymptomsDiagnosis()
		s.metrics.ObserveDiagnosis("empty", string(result.Diagnosis.Severity))
		return result, nil
	}

	if err := s.begin(result.PatientID); err != nil {
		return Result{}, err
	}
	defer s.finish(result.PatientID)

	started := s.now()
	result.Diagnosis, result.Provider = s.diagnose(ctx, req.Symptoms)
	result.State = StateComplete
	if s.disclaim != nil {
		result.Disclaimer = s.disclaim.DisclaimerFor(ctx, result.PatientID, result.Diagnosis)
	}

	provenance := ProviderRuleBased
	if result.Diagnosis.AIGenerated {
		provenance = "ai"
	}
	s.metrics.ObserveDiagnosis(provenance, string(result.Diagnosis.Severity))
	s.logger.Info("diagnosis complete",
		"diagnosis_id", result.ID,
		"patient_id", result.PatientID,
		"condition", result.Diagnosis.Condition,
		"severity", result.Diagnosis.Severity,
		"ai_generated", result.Diagnosis.AIGenerated,
		"seek_immediate_care", result.Diagnosis.SeekImmediateCare,
	)

	if result.PatientID != "" && s.records != nil {
		if err := s.records.AppendDiagnosis(ctx, result.PatientID, result.Diagnosis); err != nil {
			return result, fmt.Errorf("diagnosis: append to patient record: %w", err)
		}
	}

	rec := Record{
		ID:        result.ID,
		PatientID: result.PatientID,
		Symptoms:  req.Symptoms,
		Diagnosis: result.Diagnosis,
		Provider:  result.Provider,
		Latency:   s.now().Sub(started),
		CreatedAt: started,
	}
	for _, o := range s.observers {
		if err := o.observer.DiagnosisCompleted(ctx, rec); err != nil {
			s.logger.Warn("diagnosis observer failed", "observer", o.name, "error", err, "diagnosis_id", rec.ID)
		}
	}
	return result, nil
}

func (s *Service) diagnose(ctx context.Context, symptoms []Symptom) (Diagnosis, string) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.client.Complete(callCtx, llm.Request{
		Model:       s.model,
		System:      []string{systemPrompt},
		Messages:    BuildPrompt(symptoms),
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
	})
	elapsed := time.Since(started).Seconds()

	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		s.metrics.ObserveLLMLatency(providerLabel(resp.Provider), "error", elapsed)
		s.logger.Warn("AI diagnosis unavailable, using rule based engine", "error", err)
		return ruleBasedAt(symptoms, s.now()), ProviderRuleBased
	}

	s.metrics.ObserveLLMLatency(providerLabel(resp.Provider), "ok", elapsed)
	return parseAIResponseAt(resp.Text, symptoms, s.now()), providerLabel(resp.Provider)
}

func (s *Service) begin(patientID string) error {
	if patientID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[patientID] == StateAnalyzing {
		return ErrAnalysisInProgress
	}
	s.inflight[patientID] = StateAnalyzing
	return nil
}

func (s *Service) finish(patientID string) {
	if patientID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, patientID)
}

func providerLabel(p string) string {
	if p == "" {
		return "unknown"
	}
	return p
}
