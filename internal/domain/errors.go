package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during evaluation operations.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMalformedTranscript indicates that a transcript cannot be split into
	// (user, assistant) pairs.
	ErrMalformedTranscript = errors.New("malformed transcript")

	// ErrJudgementParse indicates that a judge response is not a valid judgement.
	ErrJudgementParse = errors.New("judgement parse failed")

	// ErrTranscriptNotFound indicates that a replay index has no loaded transcript.
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// ConfigurationError reports a configuration problem detected before any
// model call is made. It is fatal for the whole run.
type ConfigurationError struct {
	// Key names the offending configuration key, if any.
	Key string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: key=%s, err=%v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports ErrInvalidConfiguration as a match so callers can test for the
// whole class with errors.Is.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// NewConfigurationError creates a ConfigurationError for key.
func NewConfigurationError(key string, err error) *ConfigurationError {
	return &ConfigurationError{Key: key, Err: err}
}

// JudgementParseError reports a judge response that could not be decoded
// into a Judgement.
type JudgementParseError struct {
	// Index is the position of the (prompt, answer) pair being judged.
	Index int

	// Raw is the judge output as received.
	Raw string

	// Err is the decoding or validation failure.
	Err error
}

// Error implements the error interface for JudgementParseError.
func (e *JudgementParseError) Error() string {
	return fmt.Sprintf("judgement parse error: pair=%d, err=%v, raw=%q", e.Index, e.Err, truncate(e.Raw, 200))
}

// Unwrap returns the underlying error.
func (e *JudgementParseError) Unwrap() error { return e.Err }

// Is matches ErrJudgementParse.
func (e *JudgementParseError) Is(target error) bool { return target == ErrJudgementParse }

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
