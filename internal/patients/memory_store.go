package patients

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

// MemoryStore keeps patient records in process. Last write wins.
type MemoryStore struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: map[string]*Patient{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) RecordVitals(_ context.Context, patientID, name string, v vitals.WearableVitals) error {
	if patientID == "" {
		return errPatientIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.upsert(patientID)
	if name != "" {
		p.Name = name
	}
	reading := v
	ts := v.Timestamp
	p.LatestVitals = &reading
	p.LastSyncAt = &ts
	return nil
}

func (s *MemoryStore) AppendDiagnosis(_ context.Context, patientID string, d diagnosis.Diagnosis) error {
	if patientID == "" {
		return errPatientIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.upsert(patientID)
	p.Diagnoses = append(p.Diagnoses, d)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, patientID string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := *p
	out.Diagnoses = slices.Clone(p.Diagnoses)
	slices.Reverse(out.Diagnoses)
	if len(out.Diagnoses) > recentDiagnosesLimit {
		out.Diagnoses = out.Diagnoses[:recentDiagnosesLimit]
	}
	if out.Diagnoses == nil {
		out.Diagnoses = []diagnosis.Diagnosis{}
	}
	return &out, nil
}

func (s *MemoryStore) upsert(patientID string) *Patient {
	now := s.now()
	p, ok := s.patients[patientID]
	if !ok {
		p = &Patient{ID: patientID, CreatedAt: now}
		s.patients[patientID] = p
	}
	p.UpdatedAt = now
	return p
}
