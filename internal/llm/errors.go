package llm

import (
	"fmt"
	"time"
)

// RateLimitError indicates the provider returned a rate limit error (429).
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.Wait, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter is the server's suggested wait, zero when unknown.
func (e *RateLimitError) RetryAfter() time.Duration { return e.Wait }

// ProviderUnavailableError indicates the provider is down or unreachable.
type ProviderUnavailableError struct {
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// RequestRejectedError indicates the provider refused the request itself
// (bad key, unknown model, invalid parameters). Retrying cannot help.
type RequestRejectedError struct {
	StatusCode int
	Err        error
}

func (e *RequestRejectedError) Error() string {
	return fmt.Sprintf("LLM request rejected (status %d): %v", e.StatusCode, e.Err)
}

func (e *RequestRejectedError) Unwrap() error { return e.Err }

// Retryable reports false.
func (e *RequestRejectedError) Retryable() bool { return false }

// EmptyResponseError indicates the provider answered without any text.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("model %s returned no text", e.Model)
}

// classifyStatus maps an HTTP status from a provider SDK error to a typed error.
func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return &RateLimitError{Err: err}
	case status == 408 || status >= 500 || status == 0:
		return &ProviderUnavailableError{Err: err}
	case status >= 400:
		return &RequestRejectedError{StatusCode: status, Err: err}
	}
	return &ProviderUnavailableError{Err: err}
}
