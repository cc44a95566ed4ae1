package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ahrav/judgebench/internal/domain"
)

// ChatRequest is a single chat inference request.
type ChatRequest struct {
	// Model is the model identifier. Implementations may accept a
	// "provider/model" form to select a backend.
	Model string

	// Messages is the full conversation so far, system message first if any.
	Messages []domain.Message

	// Options holds provider inference options such as "temperature",
	// "num_ctx" or "max_tokens". Keys a provider does not understand are
	// ignored.
	Options map[string]any

	// Format optionally constrains the response to a JSON schema. Providers
	// without schema support fall back to plain JSON mode or ignore it.
	Format json.RawMessage
}

// ChatClient defines the inference backend used to drive and judge
// conversations.
// Implementations handle provider-specific details like authentication,
// request formatting, and response parsing.
type ChatClient interface {
	// Chat sends the conversation to the model and returns its reply as an
	// assistant message. Implementations must not retain req.Messages.
	Chat(ctx context.Context, req ChatRequest) (domain.Message, error)

	// Unload asks the backend to release the model from memory. Backends
	// without model residency treat this as a no-op.
	Unload(ctx context.Context, model string) error
}

// QuestionSource resolves benchmark questions and their images.
type QuestionSource interface {
	// GetQuestion returns the question with the given id, or an error
	// wrapping ErrQuestionNotFound.
	GetQuestion(ctx context.Context, id string) (domain.Question, error)

	// GetQuestionImagesBase64 returns the base64-encoded images declared by
	// the question, in declaration order.
	GetQuestionImagesBase64(ctx context.Context, id string) ([]string, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like requests, errors, tokens, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like in-flight tasks.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like ratings.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

var _ MetricsCollector = NoopMetrics{}

func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NoopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NoopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NoopMetrics) RecordHistogram(string, float64, map[string]string)     {}
