package embedding

import (
	"context"
	"time"

	"github.com/hyperjump/studybuddy/internal/guard"
	"github.com/hyperjump/studybuddy/pkg/utils"
	"go.uber.org/zap"
)

// GuardedEmbedder applies a timeout and bounded retry to every call of a remote embedder.
// Exhausted calls fail with *models.ModelTimeoutError or *models.ModelUnavailableError.
type GuardedEmbedder struct {
	inner  Embedder
	policy guard.Policy
	logger *zap.Logger
}

// NewGuardedEmbedder wraps inner with policy.
func NewGuardedEmbedder(inner Embedder, policy guard.Policy, logger *zap.Logger) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, policy: policy, logger: utils.OrNop(logger)}
}

func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return guard.Do(ctx, g.policy, func(ctx context.Context) ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
}

func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out, err := guard.Do(ctx, g.policy, func(ctx context.Context) ([][]float32, error) {
		return g.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		g.logger.Warn("embedding batch failed",
			zap.String("model", g.policy.Model),
			zap.Int("texts", len(texts)),
			zap.Error(err))
		return nil, err
	}
	g.logger.Debug("embedding batch",
		zap.String("model", g.policy.Model),
		zap.Int("texts", len(texts)),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

func (g *GuardedEmbedder) Dimensions() int {
	return g.inner.Dimensions()
}

func (g *GuardedEmbedder) Close() error {
	return g.inner.Close()
}
