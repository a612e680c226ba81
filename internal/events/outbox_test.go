package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "patient:p1", "diagnosis.completed.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env, err := store.Append(context.Background(), PatientAggregate("p1"), DiagnosisCompletedV1{DiagnosisID: "d1", PatientID: "p1"}, WithCorrelationID(" job-1 "))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if env.EventID.Version() != 7 {
		t.Fatalf("expected time ordered event id, got version %d", env.EventID.Version())
	}
	if env.CorrelationID != "job-1" {
		t.Fatalf("expected trimmed correlation id, got %q", env.CorrelationID)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(id, "patient:p1", "diagnosis.completed.v1", []byte(`{"event_id":"x"}`), now)
	mock.ExpectQuery("SELECT id, aggregate").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].Aggregate != "patient:p1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := newEnvelope("patient:p1", AlertRaisedV1{
		PatientID: "p1",
		Alerts:    []AlertEntry{{AlertID: "a1", Vital: "Heart Rate", Severity: "critical"}},
	}, WithEventID(id))
	if err != nil {
		t.Fatalf("newEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if env.TimestampMicros != fixedNow.UnixMicro() {
		t.Fatalf("unexpected timestamp: %d", env.TimestampMicros)
	}
	if env.EventType != "vitals.alert.raised.v1" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}

	var payload AlertRaisedV1
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload not decodable: %v", err)
	}
	if len(payload.Alerts) != 1 || payload.Alerts[0].AlertID != "a1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

type emptyTypeEvent struct{}

func (emptyTypeEvent) EventType() string { return " " }

func TestNewEnvelopeValidation(t *testing.T) {
	if _, err := newEnvelope(" ", DiagnosisCompletedV1{}); !errors.Is(err, errMissingAggregate) {
		t.Fatalf("expected missing aggregate error, got %v", err)
	}
	if _, err := newEnvelope("patient:p1", nil); !errors.Is(err, errNilEvent) {
		t.Fatalf("expected nil event error, got %v", err)
	}
	if _, err := newEnvelope("patient:p1", emptyTypeEvent{}); err == nil {
		t.Fatal("expected error for empty event type")
	}
	if got := PatientAggregate(""); got != "patient:anonymous" {
		t.Fatalf("unexpected anonymous aggregate %q", got)
	}
}

type fakeSource struct {
	entries   []OutboxEntry
	delivered []uuid.UUID
	fetchErr  error
}

func (f *fakeSource) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	return f.entries, f.fetchErr
}

func (f *fakeSource) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

func TestDelivererDrain(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	source := &fakeSource{entries: []OutboxEntry{{ID: good, Type: "a"}, {ID: bad, Type: "b"}}}
	handler := DeliveryHandlerFunc(func(_ context.Context, entry OutboxEntry) error {
		if entry.ID == bad {
			return errors.New("broker down")
		}
		return nil
	})

	d := NewDeliverer(source, handler, logging.Default()).WithBatchSize(5).WithInterval(time.Millisecond)
	if n := d.drain(context.Background()); n != 1 {
		t.Fatalf("expected 1 delivered, got %d", n)
	}
	if len(source.delivered) != 1 || source.delivered[0] != good {
		t.Fatalf("expected only the successful entry to be marked, got %v", source.delivered)
	}

	source.fetchErr = errors.New("db down")
	if n := d.drain(context.Background()); n != 0 {
		t.Fatalf("expected nothing delivered on fetch error, got %d", n)
	}
}

func TestDelivererStartStopsOnCancel(t *testing.T) {
	source := &fakeSource{}
	d := NewDeliverer(source, NewLogHandler(nil), nil).WithInterval(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}

	// no handler means nothing to run
	NewDeliverer(source, nil, nil).Start(context.Background())
}
