package llm

import (
	"context"

	"github.com/hyperjump/studybuddy/internal/guard"
)

// GuardedProvider is a decorator that bounds every attempt with a timeout and retries
// transient errors with exponential backoff and jitter. Exhaustion is reported as
// *models.ModelTimeoutError or *models.ModelUnavailableError.
type GuardedProvider struct {
	inner  Provider
	policy guard.Policy
}

// WithGuard wraps a Provider with timeout and retry handling. An empty policy model
// defaults to the provider's model id.
func WithGuard(p Provider, policy guard.Policy) Provider {
	if policy.Model == "" {
		policy.Model = p.ModelID()
	}
	return &GuardedProvider{inner: p, policy: policy}
}

func (g *GuardedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return guard.Do(ctx, g.policy, func(ctx context.Context) (*Response, error) {
		return g.inner.Generate(ctx, req)
	})
}

func (g *GuardedProvider) ModelID() string {
	return g.inner.ModelID()
}
