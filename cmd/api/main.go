package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/telehealth-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	"github.com/wolfman30/telehealth-ai-platform/internal/api/router"
	"github.com/wolfman30/telehealth-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/telehealth-ai-platform/internal/compliance"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/events"
	httpmiddleware "github.com/wolfman30/telehealth-ai-platform/internal/http/middleware"
	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/internal/patients"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	awsCfg, err := mainconfig.LoadAWSConfig(appCtx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, registry, vitalsMetrics, diagnosisMetrics := setupMetrics()

	pool := bootstrap.ConnectPostgresPool(appCtx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	} else {
		logger.Warn("DATABASE_URL not set or unreachable; patient records and vitals are kept in memory")
	}
	stores := bootstrap.BuildStores(pool, cfg)

	redisClient := bootstrap.BuildRedisClient(appCtx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	alertStore := bootstrap.BuildAlertStore(redisClient, cfg, logger)
	hub := alerts.NewHub(logger)

	var auditDB *sql.DB
	var audit *compliance.AuditService
	if pool != nil {
		auditDB = stdlib.OpenDBFromPool(pool)
		defer func() { _ = auditDB.Close() }()
		audit = compliance.NewAuditService(auditDB)
	}

	llmClient, closeLLM, err := bootstrap.BuildLLMClient(appCtx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure AI provider", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	diagnosisService := setupDiagnosis(cfg, awsCfg, llmClient, stores, audit, diagnosisMetrics, logger)

	queue := bootstrap.BuildDiagnosisQueue(cfg, awsCfg)
	jobStore := bootstrap.BuildJobStore(cfg, awsCfg, logger)
	publisher := diagnosis.NewPublisher(queue, logger)
	worker := setupInlineWorker(appCtx, cfg, logger, diagnosisService, queue, jobStore, diagnosisMetrics)

	eventHandler, closeEvents := bootstrap.BuildEventHandler(cfg, awsCfg, logger)
	defer closeEvents()
	if stores.Outbox != nil {
		go events.NewDeliverer(stores.Outbox, eventHandler, logger).Start(appCtx)
	}

	vitalsService := bootstrap.BuildVitalsService(cfg, awsCfg, stores, alertStore, hub, vitalsMetrics, logger)

	alertsHandler := alerts.NewHandler(alertStore, hub, logger)
	if audit != nil {
		alertsHandler = alertsHandler.WithAuditor(audit, httpmiddleware.ClinicianID)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.Run(appCtx, time.Minute)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		VitalsHandler:      wearables.NewHandler(vitalsService, logger),
		AlertsHandler:      alertsHandler,
		PatientsHandler:    patients.NewHandler(stores.Patients, logger),
		DiagnosisHandler:   diagnosis.NewHandler(diagnosisService, jobStore, publisher, logger),
		ClinicianJWTSecret: cfg.ClinicianJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		MetricsHandler:     metricsHandler,
		StatsGatherer:      registry,
		HealthChecks:       healthChecks(pool, redisClient),
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancelApp()
	waitForInlineWorker(worker, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *prometheus.Registry, *metrics.VitalsMetrics, *metrics.DiagnosisMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, registry, metrics.NewVitalsMetrics(registry), metrics.NewDiagnosisMetrics(registry)
}

func setupDiagnosis(cfg *appconfig.Config, awsCfg aws.Config, client llm.Client, stores bootstrap.Stores, audit *compliance.AuditService, m *metrics.DiagnosisMetrics, logger *logging.Logger) *diagnosis.Service {
	deps := bootstrap.DiagnosisDeps{Records: stores.Patients, Audit: audit, Metrics: m}
	if stores.Outbox != nil {
		deps.Outbox = stores.Outbox
	}
	return bootstrap.BuildDiagnosisService(cfg, awsCfg, client, deps, logger)
}

// setupInlineWorker runs diagnosis jobs in-process when the memory queue is
// used. With SQS the diagnosis-worker binary consumes the queue.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, analyzer diagnosis.Analyzer, queue diagnosis.Queue, jobs diagnosis.JobUpdater, m *metrics.DiagnosisMetrics) *diagnosis.Worker {
	if _, ok := queue.(*diagnosis.MemoryQueue); !ok {
		return nil
	}
	worker := diagnosis.NewWorker(analyzer, queue, jobs, logger,
		diagnosis.WithWorkerCount(cfg.DiagnosisWorker),
		diagnosis.WithWorkerMetrics(m),
	)
	worker.Start(ctx)
	logger.Info("inline diagnosis worker started", "workers", cfg.DiagnosisWorker)
	return worker
}

func waitForInlineWorker(worker *diagnosis.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("timed out waiting for diagnosis workers")
	}
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
