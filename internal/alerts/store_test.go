package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
)

func newAlert(id string) vitals.VitalAlert {
	return vitals.VitalAlert{
		ID:        id,
		PatientID: "p1",
		Vital:     vitals.VitalHeartRate,
		Value:     "145",
		Severity:  vitals.SeverityCritical,
		Status:    vitals.StatusActive,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func storeImplementations(t *testing.T, capacity int) map[string]Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(capacity),
		"redis":  NewRedisStore(client, capacity),
	}
}

func TestStore_AppendListNewestFirst(t *testing.T) {
	for name, store := range storeImplementations(t, 10) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "p1", newAlert("a1"), newAlert("a2")))
			require.NoError(t, store.Append(ctx, "p1", newAlert("a3")))
			require.NoError(t, store.Append(ctx, "p1"))

			list, err := store.List(ctx, "p1", 0)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"a3", "a2", "a1"}, []string{list[0].ID, list[1].ID, list[2].ID})

			limited, err := store.List(ctx, "p1", 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, "a3", limited[0].ID)

			empty, err := store.List(ctx, "nobody", 0)
			require.NoError(t, err)
			assert.Empty(t, empty)

			assert.Error(t, store.Append(ctx, "", newAlert("x")))
		})
	}
}

func TestStore_CapDropsOldestFirst(t *testing.T) {
	for name, store := range storeImplementations(t, DefaultHistoryCap) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < DefaultHistoryCap+5; i++ {
				require.NoError(t, store.Append(ctx, "p1", newAlert(fmt.Sprintf("a%03d", i))))
			}
			list, err := store.List(ctx, "p1", 0)
			require.NoError(t, err)
			require.Len(t, list, DefaultHistoryCap)
			assert.Equal(t, fmt.Sprintf("a%03d", DefaultHistoryCap+4), list[0].ID)
			assert.Equal(t, "a005", list[len(list)-1].ID)
		})
	}
}

func TestStore_UpdateStatus(t *testing.T) {
	for name, store := range storeImplementations(t, 10) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "p1", newAlert("a1"), newAlert("a2")))

			updated, err := store.UpdateStatus(ctx, "p1", "a1", vitals.StatusAcknowledged)
			require.NoError(t, err)
			assert.Equal(t, vitals.StatusAcknowledged, updated.Status)
			assert.Equal(t, "a1", updated.ID)

			list, err := store.List(ctx, "p1", 0)
			require.NoError(t, err)
			assert.Equal(t, vitals.StatusActive, list[0].Status)
			assert.Equal(t, vitals.StatusAcknowledged, list[1].Status)

			_, err = store.UpdateStatus(ctx, "p1", "a1", vitals.StatusResolved)
			require.NoError(t, err)
			_, err = store.UpdateStatus(ctx, "p1", "a1", vitals.StatusActive)
			assert.ErrorIs(t, err, ErrInvalidStatus)

			_, err = store.UpdateStatus(ctx, "p1", "missing", vitals.StatusResolved)
			assert.ErrorIs(t, err, ErrAlertNotFound)
			_, err = store.UpdateStatus(ctx, "p2", "a1", vitals.StatusResolved)
			assert.ErrorIs(t, err, ErrAlertNotFound)
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to vitals.AlertStatus
		want     bool
	}{
		{vitals.StatusActive, vitals.StatusAcknowledged, true},
		{vitals.StatusActive, vitals.StatusResolved, true},
		{vitals.StatusAcknowledged, vitals.StatusResolved, true},
		{vitals.StatusAcknowledged, vitals.StatusActive, false},
		{vitals.StatusResolved, vitals.StatusAcknowledged, false},
		{vitals.StatusResolved, vitals.StatusResolved, true},
		{vitals.StatusActive, "dismissed", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNewRedisStore_NilClient(t *testing.T) {
	assert.Nil(t, NewRedisStore(nil, 10))
}
