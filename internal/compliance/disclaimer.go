package compliance

import (
	"context"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	// DisclaimerShort is the shortest disclaimer.
	DisclaimerShort DisclaimerLevel = "short"
	// DisclaimerMedium is a moderate disclaimer.
	DisclaimerMedium DisclaimerLevel = "medium"
	// DisclaimerFull is the most comprehensive disclaimer.
	DisclaimerFull DisclaimerLevel = "full"
)

// Disclaimer templates
const (
	disclaimerShortText = "Automated assessment. Not medical advice."

	disclaimerMediumText = "This is an automated assessment. For medical advice, please consult your provider."

	disclaimerFullText = "This assessment was generated automatically from the symptoms you reported. It is general in nature and not a substitute for an examination by a licensed healthcare provider."

	emergencyText = "If you believe you are experiencing a medical emergency, call 911 or go to the nearest emergency room now."
)

// DisclaimerConfig configures the disclaimer service.
type DisclaimerConfig struct {
	// Level determines which disclaimer template to use.
	Level DisclaimerLevel
	// Enabled controls whether disclaimers are added.
	Enabled bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultDisclaimerConfig returns sensible defaults.
func DefaultDisclaimerConfig() DisclaimerConfig {
	return DisclaimerConfig{
		Level:   DisclaimerMedium,
		Enabled: true,
	}
}

// DisclaimerService picks the notice attached to diagnoses and audits it.
type DisclaimerService struct {
	audit  *AuditService
	config DisclaimerConfig
	logger *logging.Logger
}

var _ diagnosis.DisclaimerSource = (*DisclaimerService)(nil)

// NewDisclaimerService creates a new disclaimer service. audit may be nil.
func NewDisclaimerService(audit *AuditService, config DisclaimerConfig, logger *logging.Logger) *DisclaimerService {
	if logger == nil {
		logger = logging.Default()
	}
	return &DisclaimerService{
		audit:  audit,
		config: config,
		logger: logger,
	}
}

// GetDisclaimerText returns the configured disclaimer text.
func (s *DisclaimerService) GetDisclaimerText() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}

	switch s.config.Level {
	case DisclaimerShort:
		return disclaimerShortText
	case DisclaimerFull:
		return disclaimerFullText
	default:
		return disclaimerMediumText
	}
}

// DisclaimerFor returns the notice for d. AI generated diagnoses always get
// the full text, and emergencies get the emergency line appended.
func (s *DisclaimerService) DisclaimerFor(ctx context.Context, patientID string, d diagnosis.Diagnosis) string {
	if !s.config.Enabled {
		return ""
	}

	level := s.config.Level
	text := s.GetDisclaimerText()
	if d.AIGenerated && s.config.CustomText == "" {
		level = DisclaimerFull
		text = disclaimerFullText
	}
	if d.SeekImmediateCare {
		text += " " + emergencyText
	}

	if s.audit != nil {
		if err := s.audit.LogDisclaimerAttached(ctx, patientID, string(level)); err != nil {
			s.logger.Warn("failed to audit disclaimer", "error", err, "patient_id", patientID)
		}
	}
	return text
}
