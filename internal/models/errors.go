package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedFormat is returned for uploads outside pdf, docx and txt.
	ErrUnsupportedFormat = errors.New("unsupported file type; upload PDF, DOCX, or TXT files")
	// ErrExtractionFailed is returned when text cannot be extracted from a document.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrNoContentAvailable is returned when nothing is indexed to generate from.
	ErrNoContentAvailable = errors.New("no documents available; upload study materials first")
	// ErrQuizNotFound is returned for an unknown quiz id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizAlreadySubmitted is returned when a quiz is submitted a second time.
	ErrQuizAlreadySubmitted = errors.New("quiz already submitted")
	// ErrInvalidQuestionType is returned for an unknown question type.
	ErrInvalidQuestionType = errors.New("invalid question type")
)

// ModelUnavailableError reports that a generative or embedding model could not
// serve a request after all attempts.
type ModelUnavailableError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Retryable reports that the caller may try again later.
func (e *ModelUnavailableError) Retryable() bool { return true }

// ModelTimeoutError reports that a model call exceeded its deadline on the last attempt.
type ModelTimeoutError struct {
	Model    string
	Timeout  time.Duration
	Attempts int
	Err      error
}

func (e *ModelTimeoutError) Error() string {
	return fmt.Sprintf("model %s timed out after %s (%d attempt(s))", e.Model, e.Timeout, e.Attempts)
}

func (e *ModelTimeoutError) Unwrap() error { return e.Err }

// Retryable reports that the caller may try again later.
func (e *ModelTimeoutError) Retryable() bool { return true }

// IsModelFailure reports whether err is a model timeout or unavailability.
func IsModelFailure(err error) bool {
	var unavailable *ModelUnavailableError
	var timeout *ModelTimeoutError
	return errors.As(err, &unavailable) || errors.As(err, &timeout)
}
