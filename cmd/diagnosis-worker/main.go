package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/telehealth-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/telehealth-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/telehealth-ai-platform/internal/compliance"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if cfg.UseMemoryQueue || cfg.DiagnosisQueueURL == "" {
		logger.Error("diagnosis worker requires DIAGNOSIS_QUEUE_URL with USE_MEMORY_QUEUE=false")
		os.Exit(1)
	}

	llmClient, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsConfig, logger)
	if err != nil {
		logger.Error("failed to configure AI provider", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	deps := bootstrap.DiagnosisDeps{Metrics: metrics.NewDiagnosisMetrics(prometheus.DefaultRegisterer)}
	if pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		defer pool.Close()
		stores := bootstrap.BuildStores(pool, cfg)
		db := stdlib.OpenDBFromPool(pool)
		defer func() { _ = db.Close() }()
		deps.Records = stores.Patients
		deps.Audit = compliance.NewAuditService(db)
		deps.Outbox = stores.Outbox
	}
	service := bootstrap.BuildDiagnosisService(cfg, awsConfig, llmClient, deps, logger)

	queue := bootstrap.BuildDiagnosisQueue(cfg, awsConfig)
	jobStore := bootstrap.BuildJobStore(cfg, awsConfig, logger)
	worker := diagnosis.NewWorker(
		service,
		queue,
		jobStore,
		logger,
		diagnosis.WithWorkerCount(cfg.DiagnosisWorker),
		diagnosis.WithWorkerMetrics(deps.Metrics),
	)

	worker.Start(ctx)
	logger.Info("diagnosis worker started", "workers", cfg.DiagnosisWorker, "queue", cfg.DiagnosisQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down diagnosis worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("diagnosis worker stopped")
	case <-doneCtx.Done():
		logger.Error("diagnosis worker shutdown timed out", "error", doneCtx.Err())
	}
}
