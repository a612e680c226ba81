package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
	"github.com/wolfman30/telehealth-ai-platform/internal/llm"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// AI provider names accepted in AI_PROVIDER.
const (
	ProviderAuto    = "auto"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

// BuildLLMClient picks the diagnosis AI provider. "auto" uses Bedrock when a
// model id is set, with Gemini as fallback when a key is set. Missing
// credentials degrade to the stub so diagnoses take the rule based path. The
// returned closer is never nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	if provider == "" {
		provider = ProviderAuto
	}

	var bedrock llm.Client
	if (provider == ProviderAuto || provider == ProviderBedrock) && strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}

	var gemini *llm.GeminiClient
	if (provider == ProviderAuto || provider == ProviderGemini) && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		gemini = client
	}
	closer := noop
	if gemini != nil {
		closer = func() {
			if err := gemini.Close(); err != nil {
				logger.Warn("failed to close gemini client", "error", err)
			}
		}
	}

	switch {
	case provider == ProviderNone:
		logger.Info("AI provider disabled; diagnoses use the rule based engine")
		return llm.StubClient{}, closer, nil
	case bedrock != nil && gemini != nil:
		logger.Info("AI provider configured", "primary", "bedrock", "fallback", "gemini", "model", cfg.BedrockModelID)
		return llm.NewFallbackClient(bedrock, gemini, logger.Logger), closer, nil
	case bedrock != nil:
		logger.Info("AI provider configured", "primary", "bedrock", "model", cfg.BedrockModelID)
		return bedrock, closer, nil
	case gemini != nil:
		logger.Info("AI provider configured", "primary", "gemini", "model", cfg.GeminiModelID)
		return gemini, closer, nil
	default:
		logger.Warn("no AI provider credentials; diagnoses use the rule based engine", "provider", provider)
		return llm.StubClient{}, closer, nil
	}
}
