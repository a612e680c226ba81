package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/telehealth-ai-platform/internal/alerts"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/notify"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildAlertStore uses Redis when a client is available and falls back to
// process memory otherwise.
func BuildAlertStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) alerts.Store {
	capacity := alerts.DefaultHistoryCap
	if cfg != nil && cfg.AlertHistoryCap > 0 {
		capacity = cfg.AlertHistoryCap
	}
	if redisClient != nil {
		return alerts.NewRedisStore(redisClient, capacity)
	}
	if logger != nil {
		logger.Warn("redis not configured; alert history is kept in memory")
	}
	return alerts.NewMemoryStore(capacity)
}

// BuildEmailSender selects the emergency email provider. "auto" prefers
// SendGrid, then SES, then the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))

	if provider == "" || provider == "auto" || provider == "sendgrid" {
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("emergency email provider configured", "provider", "sendgrid")
			return sender
		}
	}
	if (provider == "" || provider == "auto" || provider == "ses") && strings.TrimSpace(cfg.SESFromEmail) != "" {
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("emergency email provider configured", "provider", "ses")
			return sender
		}
	}
	logger.Warn("no email provider configured; emergency emails are logged only", "provider", provider)
	return notify.NewStubEmailSender(logger)
}

// BuildEmergencyNotifier returns nil when no care team address is configured.
func BuildEmergencyNotifier(cfg *appconfig.Config, sender notify.EmailSender, logger *logging.Logger, opts ...notify.EmergencyOption) *notify.EmergencyNotifier {
	if cfg == nil || strings.TrimSpace(cfg.CareTeamEmail) == "" || sender == nil {
		return nil
	}
	return notify.NewEmergencyNotifier(sender, strings.Split(cfg.CareTeamEmail, ","), logger, opts...)
}
