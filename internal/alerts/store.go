package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

// DefaultHistoryCap is how many alerts are retained per patient.
const DefaultHistoryCap = 100

var (
	ErrAlertNotFound = errors.New("alerts: alert not found")
	ErrInvalidStatus = errors.New("alerts: invalid status transition")
)

// Store is the bounded per-patient alert history. List returns newest first.
type Store interface {
	Append(ctx context.Context, patientID string, alerts ...vitals.VitalAlert) error
	List(ctx context.Context, patientID string, limit int) ([]vitals.VitalAlert, error)
	UpdateStatus(ctx context.Context, patientID, alertID string, status vitals.AlertStatus) (vitals.VitalAlert, error)
}

// CanTransition reports whether an alert may move from one status to another.
// Resolved alerts are final.
func CanTransition(from, to vitals.AlertStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	switch from {
	case vitals.StatusActive:
		return to == vitals.StatusAcknowledged || to == vitals.StatusResolved
	case vitals.StatusAcknowledged:
		return to == vitals.StatusResolved
	}
	return false
}

func applyStatus(alert *vitals.VitalAlert, status vitals.AlertStatus) error {
	if !CanTransition(alert.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, alert.Status, status)
	}
	alert.Status = status
	return nil
}

// MemoryStore keeps alert history in process.
type MemoryStore struct {
	mu      sync.RWMutex
	cap     int
	history map[string][]vitals.VitalAlert // oldest first
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &MemoryStore{cap: capacity, history: map[string][]vitals.VitalAlert{}}
}

func (s *MemoryStore) Append(_ context.Context, patientID string, alerts ...vitals.VitalAlert) error {
	if patientID == "" {
		return errors.New("alerts: patientID required")
	}
	if len(alerts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.history[patientID], alerts...)
	if over := len(list) - s.cap; over > 0 {
		list = append([]vitals.VitalAlert(nil), list[over:]...)
	}
	s.history[patientID] = list
	return nil
}

func (s *MemoryStore) List(_ context.Context, patientID string, limit int) ([]vitals.VitalAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.history[patientID]
	if limit > 0 && limit < len(list) {
		list = list[len(list)-limit:]
	}
	return lo.Reverse(append([]vitals.VitalAlert{}, list...)), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, patientID, alertID string, status vitals.AlertStatus) (vitals.VitalAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.history[patientID]
	_, idx, ok := lo.FindIndexOf(list, func(a vitals.VitalAlert) bool { return a.ID == alertID })
	if !ok {
		return vitals.VitalAlert{}, ErrAlertNotFound
	}
	if err := applyStatus(&list[idx], status); err != nil {
		return vitals.VitalAlert{}, err
	}
	return list[idx], nil
}
