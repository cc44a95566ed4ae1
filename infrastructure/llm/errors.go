package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/judgebench/internal/ports"
)

var (
	// ErrEmptyAPIKey is returned by hosted providers constructed without a key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse means the backend answered without any content.
	ErrEmptyResponse = fmt.Errorf("%w: empty response from API", ports.ErrInvalidResponse)
	// ErrNoResponseChoice means a chat completion carried no choices.
	ErrNoResponseChoice = fmt.Errorf("%w: no response choices returned", ports.ErrInvalidResponse)
	// ErrUnknownProvider means a model spec or config names an unregistered provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ErrorType classifies a backend failure.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	// ErrorTypeNotFound is what ollama reports for a model that was never pulled.
	ErrorTypeNotFound
	ErrorTypeServerError
	// ErrorTypeContentPolicy is a prompt or reply blocked by the provider.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork covers an unreachable server, typically a stopped ollama.
	ErrorTypeNetwork
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

func (t ErrorType) String() string { return errorTypeNames[t] }

// sentinel maps the type onto the port-level error the application matches
// with errors.Is. Types without a port equivalent map to nil.
func (t ErrorType) sentinel() error {
	switch t {
	case ErrorTypeAuthentication:
		return ports.ErrAuthenticationFailed
	case ErrorTypeRateLimit:
		return ports.ErrRateLimited
	case ErrorTypeServerError, ErrorTypeNetwork:
		return ports.ErrServiceUnavailable
	case ErrorTypeTimeout:
		return ports.ErrTimeout
	default:
		return nil
	}
}

// ProviderError is a backend failure normalized across providers.
type ProviderError struct {
	Type     ErrorType
	Provider string
	// StatusCode is the HTTP status, zero when the request never got one.
	StatusCode int
	Message    string
	// WrappedError is the SDK error.
	WrappedError error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		msg += " [" + name + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.WrappedError != nil {
		msg += fmt.Sprintf(": %v", e.WrappedError)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Is matches the ports sentinel for the error type, so callers outside
// this package can write errors.Is(err, ports.ErrRateLimited).
func (e *ProviderError) Is(target error) bool {
	s := e.Type.sentinel()
	return s != nil && s == target
}

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns SDK failures of one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError classifies by status code. Auth and rate limit
// failures get a fixed message; the rest keep the provider's message.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewProviderError(ec.Provider, ErrorTypeAuthentication, statusCode, ec.Provider+" authentication failed", err)
	case statusCode == http.StatusTooManyRequests:
		return NewProviderError(ec.Provider, ErrorTypeRateLimit, statusCode, ec.Provider+" rate limit exceeded", err)
	case statusCode == http.StatusNotFound:
		return NewProviderError(ec.Provider, ErrorTypeNotFound, statusCode, message, err)
	case statusCode >= 500:
		return NewProviderError(ec.Provider, ErrorTypeServerError, statusCode, message, err)
	case statusCode >= 400:
		return NewProviderError(ec.Provider, ErrorTypeBadRequest, statusCode, message, err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, statusCode, message, err)
	}
}

// ClassifyContextError classifies a failure caused by the request context.
// A deadline is a timeout; cancellation stays unknown so it is not retried.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

// IsRetryable reports whether err is worth retrying. Canceled contexts and
// open circuits never are. Provider and port errors decide for themselves;
// anything else is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.IsRetryable()
	}
	var lerr *ports.LLMError
	if errors.As(err, &lerr) {
		return lerr.IsRetryable()
	}
	return true
}
