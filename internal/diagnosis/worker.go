package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Analyzer runs a single analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Worker consumes diagnosis jobs from the queue.
type Worker struct {
	analyzer Analyzer
	queue    Queue
	jobs     JobUpdater
	logger   *logging.Logger
	metrics  *metrics.DiagnosisMetrics

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	requeueDelay     time.Duration
	metrics          *metrics.DiagnosisMetrics
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

func WithWorkerMetrics(m *metrics.DiagnosisMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the analyzer.
func NewWorker(analyzer Analyzer, queue Queue, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if analyzer == nil {
		panic("diagnosis: analyzer cannot be nil")
	}
	if queue == nil {
		panic("diagnosis: queue cannot be nil")
	}
	if jobs == nil {
		panic("diagnosis: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		requeueDelay:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		analyzer: analyzer,
		queue:    queue,
		jobs:     jobs,
		logger:   logger,
		metrics:  cfg.metrics,
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("diagnosis worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("diagnosis worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive diagnosis jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode diagnosis job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing job", "job_id", payload.ID, "patient_id", payload.Request.PatientID, "msg_id", msg.ID)

	result, err := w.analyzer.Analyze(ctx, payload.Request)
	if err != nil {
		if errors.Is(err, ErrAnalysisInProgress) {
			w.logger.Info("requeueing diagnosis job", "job_id", payload.ID, "patient_id", payload.Request.PatientID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.requeueDelay):
			}
			if sendErr := w.queue.Send(ctx, msg.Body); sendErr != nil {
				w.logger.Error("failed to requeue diagnosis job", "error", sendErr, "job_id", payload.ID)
				return
			}
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
		w.metrics.ObserveJob(string(JobStatusFailed))
		if storeErr := w.jobs.MarkFailed(ctx, payload.ID, err.Error()); storeErr != nil {
			w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
		}
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.metrics.ObserveJob(string(JobStatusCompleted))
	if storeErr := w.jobs.MarkCompleted(ctx, payload.ID, &result); storeErr != nil {
		w.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete diagnosis job", "error", err)
	}
}
