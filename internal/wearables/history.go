package wearables

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

// DefaultHistoryCap is how many readings are retained per patient.
const DefaultHistoryCap = 1000

var errPatientIDRequired = errors.New("wearables: patientID required")

var readingNamespace = uuid.MustParse("5b0c1c62-8f0e-4d8a-9f39-7c7a1f4e2d10")

// ReadingID identifies a device sync. Redelivered syncs map to the same id.
func ReadingID(v vitals.WearableVitals) uuid.UUID {
	key := v.PatientID + "|" + v.DeviceID + "|" + v.Timestamp.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(readingNamespace, []byte(key))
}

// HistoryStore is the bounded per-patient reading history. Append ignores a
// reading already stored under the same ReadingID. Recent returns newest first.
type HistoryStore interface {
	Append(ctx context.Context, v vitals.WearableVitals) error
	Recent(ctx context.Context, patientID string, limit int) ([]vitals.WearableVitals, error)
}

// MemoryHistoryStore keeps readings in process.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	cap      int
	readings map[string][]vitals.WearableVitals // oldest first
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)

func NewMemoryHistoryStore(capacity int) *MemoryHistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &MemoryHistoryStore{cap: capacity, readings: map[string][]vitals.WearableVitals{}}
}

func (s *MemoryHistoryStore) Append(_ context.Context, v vitals.WearableVitals) error {
	if v.PatientID == "" {
		return errPatientIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if lo.ContainsBy(s.readings[v.PatientID], func(r vitals.WearableVitals) bool {
		return r.DeviceID == v.DeviceID && r.Timestamp.Equal(v.Timestamp)
	}) {
		return nil
	}
	list := append(s.readings[v.PatientID], v)
	if over := len(list) - s.cap; over > 0 {
		list = append([]vitals.WearableVitals(nil), list[over:]...)
	}
	s.readings[v.PatientID] = list
	return nil
}

func (s *MemoryHistoryStore) Recent(_ context.Context, patientID string, limit int) ([]vitals.WearableVitals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.readings[patientID]
	if limit > 0 && limit < len(list) {
		list = list[len(list)-limit:]
	}
	return lo.Reverse(append([]vitals.WearableVitals{}, list...)), nil
}
