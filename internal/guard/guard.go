// Package guard bounds calls to remote models with a per-attempt timeout and
// exponential-backoff retry, reporting exhaustion as typed model errors.
package guard

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hyperjump/studybuddy/internal/models"
)

// Policy configures a guarded call.
type Policy struct {
	// Model names the model in returned errors.
	Model string
	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout     time.Duration
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// NewPolicy returns a policy with the default backoff: 500ms doubling, capped at 10s.
func NewPolicy(model string, timeout time.Duration, maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return Policy{
		Model:       model,
		Timeout:     timeout,
		MaxAttempts: maxAttempts,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// retryable is implemented by errors that know whether another attempt can help.
type retryable interface {
	Retryable() bool
}

// retryAfter is implemented by rate-limit errors that carry a server hint.
type retryAfter interface {
	RetryAfter() time.Duration
}

// Do runs fn under p. Caller cancellation is returned as-is and never retried.
// After the last attempt, or on an error reporting Retryable() == false, the failure is
// returned as *models.ModelTimeoutError when the attempt hit its deadline and as
// *models.ModelUnavailableError otherwise.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	timedOut := false
	for attempt := range attempts {
		v, err := callOnce(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded)

		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			return zero, p.failure(err, false, attempt+1)
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.backoff(attempt, err)):
		}
	}
	return zero, p.failure(lastErr, timedOut, attempts)
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func (p Policy) failure(err error, timedOut bool, attempts int) error {
	if timedOut {
		return &models.ModelTimeoutError{Model: p.Model, Timeout: p.Timeout, Attempts: attempts, Err: err}
	}
	return &models.ModelUnavailableError{Model: p.Model, Attempts: attempts, Err: err}
}

// backoff computes the wait before the next attempt.
func (p Policy) backoff(attempt int, err error) time.Duration {
	var ra retryAfter
	if errors.As(err, &ra) && ra.RetryAfter() > 0 {
		return ra.RetryAfter()
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(attempt))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}
	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// PermanentError marks a failure that another attempt cannot fix, such as a rejected request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string   { return e.Err.Error() }
func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Retryable() bool { return false }

// Permanent wraps err so Do stops retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
