package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/config"
)

// NewFromConfig builds the provider client selected by configuration.
// Returns (nil, nil) when no credential is configured: callers treat a nil
// client as "extraction disabled", not as an error.
func NewFromConfig(cfg *config.AIConfig, logger *zap.Logger) (LLMClient, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(&AnthropicConfig{
			Model:  cfg.Model,
			APIKey: cfg.AnthropicAPIKey,
		}, logger)
	case "openai":
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.OpenAIAPIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
