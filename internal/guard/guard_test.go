package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		Model:       "test-model",
		Timeout:     50 * time.Millisecond,
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDo_succeedsFirstAttempt(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestDo_transientThenSuccess(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDo_exhaustionIsUnavailable(t *testing.T) {
	calls := 0
	cause := errors.New("503 from upstream")
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, cause
	})
	var unavailable *models.ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "test-model", unavailable.Model)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.True(t, unavailable.Retryable())
	assert.Equal(t, 3, calls)
}

func TestDo_deadlineIsTimeout(t *testing.T) {
	p := fastPolicy()
	p.Timeout = 5 * time.Millisecond
	p.MaxAttempts = 2
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	var timeout *models.ModelTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 5*time.Millisecond, timeout.Timeout)
	assert.Equal(t, 2, timeout.Attempts)
	assert.True(t, models.IsModelFailure(err))
}

func TestDo_permanentErrorStopsEarly(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(errors.New("bad request"))
	})
	var unavailable *models.ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 1, unavailable.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_callerCancellationNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("aborted")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, models.IsModelFailure(err))
	assert.Equal(t, 1, calls)
}

func TestBackoff_capAndJitter(t *testing.T) {
	p := NewPolicy("m", time.Second, 5)
	for attempt := range 10 {
		w := p.backoff(attempt, errors.New("x"))
		assert.LessOrEqual(t, w, time.Duration(float64(p.MaxWait)*1.2))
		assert.GreaterOrEqual(t, w, time.Duration(float64(p.InitialWait)*0.8))
	}
}

type rateLimited struct{ after time.Duration }

func (r rateLimited) Error() string             { return "429" }
func (r rateLimited) RetryAfter() time.Duration { return r.after }

func TestBackoff_respectsRetryAfter(t *testing.T) {
	p := NewPolicy("m", time.Second, 3)
	assert.Equal(t, 7*time.Millisecond, p.backoff(0, rateLimited{after: 7 * time.Millisecond}))
}

func TestPermanent_nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
