package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrQuestionNotFound indicates that a question id is unknown to the
	// question source.
	ErrQuestionNotFound = errors.New("question not found")
)

// LLMError is a failed model call as seen by the application: which model
// and which step of a task.
type LLMError struct {
	// Model is the identifier of the model that generated the error.
	Model string

	// Operation is the task step: chat, judge or unload.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	return fmt.Sprintf("LLM error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *LLMError) IsRetryable() bool {
	// Only network/service-level errors are retryable; logic errors are not
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// QuestionError represents a failure to resolve a question or its images.
type QuestionError struct {
	// QuestionID is the question that was being resolved.
	QuestionID string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for QuestionError.
func (e *QuestionError) Error() string {
	return fmt.Sprintf("question error: operation=%s, question_id=%s, err=%v", e.Operation, e.QuestionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *QuestionError) Unwrap() error { return e.Err }

// NewQuestionError creates a new QuestionError with the given details.
func NewQuestionError(questionID, operation string, err error) *QuestionError {
	return &QuestionError{
		QuestionID: questionID,
		Operation:  operation,
		Err:        err,
	}
}
