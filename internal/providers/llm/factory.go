package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/log"
)

// NewProvider creates the inference backend selected by configuration.
// Models are chosen per request from the pipeline profiles.
func NewProvider(ctx context.Context, cfg *config.ProviderConfig) (core.InferenceService, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Msg("starting llm provider")

	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey), nil
	case "anthropic":
		return NewAnthropic(cfg.AnthropicAPIKey), nil
	case "openrouter":
		return NewOpenRouter(cfg.OpenRouterAPIKey), nil
	case "ollama":
		p, err := NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, "")
		if err != nil {
			return nil, err
		}
		return p, nil
	case "custom":
		if cfg.CustomOpenAIBaseURL == "" {
			return nil, fmt.Errorf("custom provider requires CUSTOM_OPENAI_BASE_URL")
		}
		return NewCustomOpenAI(cfg.CustomOpenAIBaseURL, cfg.CustomOpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
