package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/telehealth-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/telehealth-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// processedSource namespaces SQS message ids in processed_events.
const processedSource = "vitals-sqs"

type ingester interface {
	Ingest(ctx context.Context, in vitals.ReadingInput) (wearables.IngestResult, error)
}

type deduper interface {
	Once(ctx context.Context, source, eventID string, fn func(context.Context) error) (bool, error)
}

type handler struct {
	svc    ingester
	dedupe deduper
	logger *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	stores := bootstrap.BuildStores(pool, cfg)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	alertStore := bootstrap.BuildAlertStore(redisClient, cfg, logger)
	svc := bootstrap.BuildVitalsService(cfg, awsCfg, stores, alertStore, nil, nil, logger)

	h := &handler{svc: svc, logger: logger}
	if stores.Processed != nil {
		h.dedupe = stores.Processed
	}
	lambda.Start(h.handle)
}

// handle ingests a batch of device readings. Malformed or invalid readings
// are dropped; other failures are reported back so SQS redelivers only
// those messages.
func (h *handler) handle(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		if err := h.process(ctx, record); err != nil {
			h.logger.Error("failed to ingest reading", "error", err, "message_id", record.MessageId)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}

func (h *handler) process(ctx context.Context, record events.SQSMessage) error {
	var in vitals.ReadingInput
	if err := json.Unmarshal([]byte(record.Body), &in); err != nil {
		h.logger.Warn("dropping malformed reading", "error", err, "message_id", record.MessageId)
		return nil
	}

	ingest := func(ctx context.Context) error {
		res, err := h.svc.Ingest(ctx, in)
		var verr *vitals.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn("dropping invalid reading", "fields", verr.Fields, "message_id", record.MessageId)
			return nil
		}
		if err != nil {
			return err
		}
		h.logger.Info("reading ingested",
			"patient_id", in.PatientID,
			"alerts", len(res.Alerts),
			"care_team_notified", res.CareTeamNotified,
		)
		return nil
	}

	if h.dedupe == nil {
		return ingest(ctx)
	}
	ran, err := h.dedupe.Once(ctx, processedSource, record.MessageId, ingest)
	if err != nil {
		return err
	}
	if !ran {
		h.logger.Debug("skipping duplicate reading", "message_id", record.MessageId)
	}
	return nil
}
