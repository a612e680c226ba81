package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/events"
	"github.com/wolfman30/telehealth-ai-platform/internal/notify"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/internal/patients"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// Stores groups the persistence used by the API and the vitals lambda.
// Outbox and Processed are nil without a database.
type Stores struct {
	History   wearables.HistoryStore
	Patients  patients.Store
	Outbox    *events.OutboxStore
	Processed *events.ProcessedStore
}

// BuildStores prefers Postgres and falls back to process memory.
func BuildStores(pool *pgxpool.Pool, cfg *appconfig.Config) Stores {
	capacity := 0
	if cfg != nil {
		capacity = cfg.VitalsHistoryCap
	}
	if pool == nil {
		return Stores{
			History:  wearables.NewMemoryHistoryStore(capacity),
			Patients: patients.NewMemoryStore(),
		}
	}
	return Stores{
		History:   wearables.NewPostgresHistoryStore(pool, capacity),
		Patients:  patients.NewPostgresStore(pool),
		Outbox:    events.NewOutboxStore(pool),
		Processed: events.NewProcessedStore(pool),
	}
}

// BuildVitalsService wires the ingestion pipeline. hub may be nil when no
// live feed is served, as in the lambda.
func BuildVitalsService(cfg *appconfig.Config, awsCfg aws.Config, stores Stores, alertStore alerts.Store, hub *alerts.Hub, m *metrics.VitalsMetrics, logger *logging.Logger) *wearables.Service {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []wearables.Option{
		wearables.WithPatients(stores.Patients),
		wearables.WithMetrics(m),
	}
	if hub != nil {
		opts = append(opts, wearables.WithBroadcaster(hub))
	}
	sender := BuildEmailSender(cfg, awsCfg, logger)
	if notifier := BuildEmergencyNotifier(cfg, sender, logger, notify.WithNotifierMetrics(m)); notifier != nil {
		opts = append(opts, wearables.WithNotifier(notifier))
	} else {
		logger.Warn("CARE_TEAM_EMAIL not set; emergency alerts will not page the care team")
	}
	if stores.Outbox != nil {
		opts = append(opts, wearables.WithOutbox(stores.Outbox))
	}
	return wearables.NewService(stores.History, alertStore, logger, opts...)
}
