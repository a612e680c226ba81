package diagnosis

import (
	"context"
	"fmt"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Publisher enqueues diagnosis jobs for asynchronous processing.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("diagnosis: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes an analysis job.
func (p *Publisher) Enqueue(ctx context.Context, jobID string, req Request) error {
	payload, body, err := encodePayload(queuePayload{ID: jobID, Request: req})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("diagnosis: failed to enqueue job: %w", err)
	}
	p.logger.Debug("diagnosis job enqueued", "job_id", payload.ID, "patient_id", req.PatientID)
	return nil
}
