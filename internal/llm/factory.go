package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/guard"
)

// NewProvider creates a Provider from configuration.
// Remote providers are wrapped: caller → logging → guard (timeout + retry) → base.
func NewProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "openai":
		base, err = NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "ollama":
		base, err = NewOllamaProvider(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "gemini":
		base, err = NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: mock, openai, ollama, anthropic, gemini)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	guarded := WithGuard(base, guard.NewPolicy(base.ModelID(), cfg.Timeout, cfg.MaxAttempts))
	return WithLogging(guarded, logger), nil
}
