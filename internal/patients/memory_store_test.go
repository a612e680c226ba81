package patients

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
)

func TestMemoryStore_RecordAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	v := sampleVitals()
	require.NoError(t, store.RecordVitals(ctx, "p1", "Ada", v))
	require.NoError(t, store.RecordVitals(ctx, "p1", "", v))

	p, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	require.NotNil(t, p.LatestVitals)
	assert.Equal(t, v.Timestamp, *p.LastSyncAt)
	assert.NotNil(t, p.Diagnoses)
	assert.Empty(t, p.Diagnoses)
}

func TestMemoryStore_AppendDiagnosisNewestFirstAndBounded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < recentDiagnosesLimit+3; i++ {
		d := diagnosis.NoSymptomsDiagnosis()
		d.Condition = fmt.Sprintf("c%d", i)
		require.NoError(t, store.AppendDiagnosis(ctx, "p1", d))
	}

	p, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Diagnoses, recentDiagnosesLimit)
	assert.Equal(t, fmt.Sprintf("c%d", recentDiagnosesLimit+2), p.Diagnoses[0].Condition)

	// Get returns a copy
	p.Diagnoses[0].Condition = "mutated"
	again, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Diagnoses[0].Condition)

	assert.Error(t, store.AppendDiagnosis(ctx, "", diagnosis.NoSymptomsDiagnosis()))
}

func TestMemoryStore_SatisfiesDiagnosisRecordStore(t *testing.T) {
	var _ diagnosis.RecordStore = NewMemoryStore()
	var _ diagnosis.RecordStore = (*PostgresStore)(nil)
}
