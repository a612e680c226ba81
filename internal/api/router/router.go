package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	httpmiddleware "github.com/wolfman30/telehealth-ai-platform/internal/http/middleware"
	"github.com/wolfman30/telehealth-ai-platform/internal/patients"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	VitalsHandler      *wearables.Handler
	AlertsHandler      *alerts.Handler
	PatientsHandler    *patients.Handler
	DiagnosisHandler   *diagnosis.Handler
	ClinicianJWTSecret string
	CORSAllowedOrigins []string

	// RateLimiter is applied to /api routes when set.
	RateLimiter *httpmiddleware.RateLimiter

	MetricsHandler http.Handler
	// StatsGatherer backs /api/stats; nil uses the default registry.
	StatsGatherer prometheus.Gatherer
	HealthChecks  map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Get("/stats", statsHandler(cfg.StatsGatherer))

		if cfg.VitalsHandler != nil {
			api.Post("/vitals", cfg.VitalsHandler.Ingest)
		}
		if cfg.DiagnosisHandler != nil {
			api.Route("/diagnoses", func(r chi.Router) {
				r.Post("/", cfg.DiagnosisHandler.Analyze)
				r.Post("/jobs", cfg.DiagnosisHandler.EnqueueJob)
				r.Get("/jobs/{jobID}", cfg.DiagnosisHandler.GetJob)
			})
		}

		api.Route("/patients/{patientID}", func(patient chi.Router) {
			if cfg.PatientsHandler != nil {
				patient.Get("/", cfg.PatientsHandler.Get)
			}
			if cfg.VitalsHandler != nil {
				patient.Get("/vitals", cfg.VitalsHandler.Recent)
			}
			if cfg.AlertsHandler != nil {
				patient.Get("/alerts", cfg.AlertsHandler.List)
				patient.Get("/alerts/stream", cfg.AlertsHandler.Stream)
				patient.With(httpmiddleware.ClinicianJWT(cfg.ClinicianJWTSecret)).
					Patch("/alerts/{alertID}", cfg.AlertsHandler.UpdateStatus)
			}
		})
	})

	return r
}
