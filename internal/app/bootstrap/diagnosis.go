package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/telehealth-ai-platform/internal/archive"
	"github.com/wolfman30/telehealth-ai-platform/internal/compliance"
	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// DiagnosisDeps are the optional sinks of a diagnosis service. Nil fields
// are skipped.
type DiagnosisDeps struct {
	Records diagnosis.RecordStore
	Audit   *compliance.AuditService
	Outbox  EventAppender
	Metrics *metrics.DiagnosisMetrics
}

// BuildDiagnosisService assembles the analysis pipeline shared by the API
// and the diagnosis worker. Completed analyses go to the audit log, the
// outbox and the S3 archive when those are configured.
func BuildDiagnosisService(cfg *appconfig.Config, awsCfg aws.Config, client llm.Client, deps DiagnosisDeps, logger *logging.Logger) *diagnosis.Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		cfg = &appconfig.Config{}
	}
	opts := []diagnosis.ServiceOption{
		diagnosis.WithModel(cfg.BedrockModelID),
		diagnosis.WithTimeout(cfg.AITimeout),
		diagnosis.WithMaxTokens(cfg.AIMaxTokens),
		diagnosis.WithDisclaimer(compliance.NewDisclaimerService(deps.Audit, compliance.DefaultDisclaimerConfig(), logger)),
		diagnosis.WithMetrics(deps.Metrics),
	}
	if deps.Records != nil {
		opts = append(opts, diagnosis.WithRecordStore(deps.Records))
	}
	if deps.Audit != nil {
		opts = append(opts, diagnosis.WithObserver("audit", deps.Audit))
	}
	if deps.Outbox != nil {
		opts = append(opts, diagnosis.WithObserver("outbox", DiagnosisEventObserver(deps.Outbox)))
	}
	if bucket := strings.TrimSpace(cfg.ArchiveBucket); bucket != "" {
		opts = append(opts, diagnosis.WithObserver("archive", archive.NewStore(s3.NewFromConfig(awsCfg), bucket, logger)))
	}
	return diagnosis.NewService(client, logger, opts...)
}
