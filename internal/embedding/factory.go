package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/guard"
	"github.com/hyperjump/studybuddy/pkg/utils"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider. Remote providers are wrapped with the
// timeout and retry guard, and every provider sits behind the LRU cache when CacheSize > 0.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	case "onnx":
		e, err = NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			VocabPath:  cfg.VocabPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
	case "openai":
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: hash, onnx, openai, gemini)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}

	if cfg.Provider == "openai" || cfg.Provider == "gemini" {
		e = NewGuardedEmbedder(e, guard.NewPolicy(cfg.Model, cfg.Timeout, cfg.MaxAttempts), logger)
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e = cached
	}
	logger.Debug("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", e.Dimensions()))
	return e, nil
}
