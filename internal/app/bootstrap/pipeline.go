package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/events"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

const memoryQueueBuffer = 256

// JobStore is the full async job lifecycle used by the API and workers.
type JobStore interface {
	diagnosis.JobRecorder
	diagnosis.JobUpdater
}

// ConnectPostgresPool returns nil when url is empty or the database is unreachable.
func ConnectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, url)
	if err != nil {
		logger.Warn("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildDiagnosisQueue returns the in-process queue unless SQS is configured.
func BuildDiagnosisQueue(cfg *appconfig.Config, awsCfg aws.Config) diagnosis.Queue {
	if cfg == nil || cfg.UseMemoryQueue || strings.TrimSpace(cfg.DiagnosisQueueURL) == "" {
		return diagnosis.NewMemoryQueue(memoryQueueBuffer)
	}
	return diagnosis.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DiagnosisQueueURL)
}

// BuildJobStore pairs with BuildDiagnosisQueue: memory jobs for the memory
// queue, DynamoDB otherwise.
func BuildJobStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) JobStore {
	if cfg == nil || cfg.UseMemoryQueue || strings.TrimSpace(cfg.DiagnosisJobsTable) == "" {
		return diagnosis.NewMemoryJobStore()
	}
	return diagnosis.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.DiagnosisJobsTable, logger)
}

// BuildEventHandler fans outbox entries out to SQS and Kafka when configured,
// and logs them otherwise. The closer flushes the Kafka writer.
func BuildEventHandler(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (events.DeliveryHandler, func()) {
	if logger == nil {
		logger = logging.Default()
	}
	closer := func() {}
	if cfg == nil {
		return events.NewLogHandler(logger), closer
	}

	var sqsPublisher *events.SQSPublisher
	if strings.TrimSpace(cfg.EventsQueueURL) != "" {
		sqsPublisher = events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.EventsQueueURL)
	}
	kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if kafkaPublisher != nil {
		closer = func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("failed to close kafka writer", "error", err)
			}
		}
	}

	handler := events.NewFanOut(sqsPublisher, kafkaPublisher)
	if handler == nil {
		logger.Info("no event transport configured; outbox entries are logged")
		return events.NewLogHandler(logger), closer
	}
	logger.Info("event transport configured", "sqs", sqsPublisher != nil, "kafka", kafkaPublisher != nil)
	return handler, closer
}

// EventAppender is the outbox write side.
type EventAppender interface {
	Append(ctx context.Context, aggregate string, evt events.CanonicalEvent, opts ...events.EnvelopeOption) (events.Envelope, error)
}

// DiagnosisEventObserver records a DiagnosisCompletedV1 for every analysis.
// The diagnosis id doubles as the event id so retries stay idempotent.
func DiagnosisEventObserver(outbox EventAppender) diagnosis.Observer {
	return diagnosis.ObserverFunc(func(ctx context.Context, rec diagnosis.Record) error {
		evt := events.DiagnosisCompletedV1{
			DiagnosisID:       rec.ID,
			PatientID:         rec.PatientID,
			Condition:         rec.Diagnosis.Condition,
			Severity:          string(rec.Diagnosis.Severity),
			Confidence:        rec.Diagnosis.Confidence,
			AIGenerated:       rec.Diagnosis.AIGenerated,
			Provider:          rec.Provider,
			SeekImmediateCare: rec.Diagnosis.SeekImmediateCare,
			SymptomCount:      len(rec.Symptoms),
			CompletedAt:       rec.CreatedAt.Add(rec.Latency),
		}
		var opts []events.EnvelopeOption
		if id, err := uuid.Parse(rec.ID); err == nil {
			opts = append(opts, events.WithEventID(id))
		}
		_, err := outbox.Append(ctx, events.PatientAggregate(rec.PatientID), evt, opts...)
		return err
	})
}
