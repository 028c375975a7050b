package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
)

// NewFromConfig creates the client for the configured provider.
// Missing credentials wrap apperrors.ErrConfigurationMissing so callers can
// return an actionable message instead of a generic failure.
func NewFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("%w: completion service credentials are not set (LLM_API_KEY / llm.endpoint)", apperrors.ErrConfigurationMissing)
	}

	clientCfg := &Config{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		// The shared endpoint default points at OpenAI.
		if strings.Contains(clientCfg.Endpoint, "api.openai.com") {
			clientCfg.Endpoint = ""
		}
		return NewAnthropicClient(clientCfg, logger)
	case config.ProviderOpenAI, "":
		return NewClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown completion provider %q", apperrors.ErrConfigurationMissing, cfg.Provider)
	}
}
