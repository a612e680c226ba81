package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

type stubIngester struct {
	calls []vitals.ReadingInput
	err   error
}

func (s *stubIngester) Ingest(_ context.Context, in vitals.ReadingInput) (wearables.IngestResult, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return wearables.IngestResult{}, s.err
	}
	if err := in.Validate(); err != nil {
		return wearables.IngestResult{}, err
	}
	return wearables.IngestResult{}, nil
}

type memoryDeduper struct {
	seen map[string]bool
	err  error
}

func (d *memoryDeduper) Once(ctx context.Context, source, eventID string, fn func(context.Context) error) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	key := source + "/" + eventID
	if d.seen[key] {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	d.seen[key] = true
	return true, nil
}

const validReading = `{"patientId":"p-1","heartRate":72,"bloodPressure":{"systolic":118,"diastolic":76},"temperature":98.6,"oxygenSaturation":98,"stressLevel":20}`

func newTestHandler(svc ingester, dedupe deduper) *handler {
	return &handler{svc: svc, dedupe: dedupe, logger: logging.NewWithWriter("error", &bytes.Buffer{})}
}

func sqsEvent(bodies map[string]string) events.SQSEvent {
	var evt events.SQSEvent
	for id, body := range bodies {
		evt.Records = append(evt.Records, events.SQSMessage{MessageId: id, Body: body})
	}
	return evt
}

func TestHandleIngestsReadings(t *testing.T) {
	svc := &stubIngester{}
	h := newTestHandler(svc, nil)

	resp, err := h.handle(context.Background(), sqsEvent(map[string]string{"m-1": validReading}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}
	if len(svc.calls) != 1 || svc.calls[0].PatientID != "p-1" {
		t.Fatalf("expected one ingested reading, got %+v", svc.calls)
	}
}

func TestHandleDropsMalformedAndInvalidReadings(t *testing.T) {
	svc := &stubIngester{}
	h := newTestHandler(svc, nil)

	resp, err := h.handle(context.Background(), sqsEvent(map[string]string{
		"bad-json": "{not json",
		"invalid":  `{"patientId":"p-1"}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected invalid readings to be dropped, got %+v", resp.BatchItemFailures)
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected only the decodable reading to reach the service, got %d", len(svc.calls))
	}
}

func TestHandleReportsStoreFailures(t *testing.T) {
	svc := &stubIngester{err: errors.New("db down")}
	h := newTestHandler(svc, nil)

	resp, err := h.handle(context.Background(), sqsEvent(map[string]string{"m-1": validReading}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m-1" {
		t.Fatalf("expected m-1 to be retried, got %+v", resp.BatchItemFailures)
	}
}

func TestHandleSkipsRedeliveredMessages(t *testing.T) {
	svc := &stubIngester{}
	h := newTestHandler(svc, &memoryDeduper{seen: map[string]bool{}})
	evt := sqsEvent(map[string]string{"m-1": validReading})

	for i := 0; i < 2; i++ {
		if _, err := h.handle(context.Background(), evt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected redelivery to be skipped, got %d calls", len(svc.calls))
	}
}

func TestHandleReportsDedupeFailures(t *testing.T) {
	svc := &stubIngester{}
	h := newTestHandler(svc, &memoryDeduper{err: errors.New("db down")})

	resp, err := h.handle(context.Background(), sqsEvent(map[string]string{"m-1": validReading}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected failure to be reported, got %+v", resp.BatchItemFailures)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("expected no ingest when dedupe fails")
	}
}
