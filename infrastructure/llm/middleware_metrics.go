package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/judgebench/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricLLMLatency  = "llm_latency_seconds"
	MetricLLMRequests = "llm_requests_total"
	MetricLLMTokens   = "llm_tokens_total"
	MetricLLMUnloads  = "llm_unloads_total"
)

// metricsLLM implements request metrics collection.
// This provides observability into request patterns, latency,
// token usage, and error rates.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects request metrics.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
		}
	}
}

// DoChat executes the request while collecting latency, status, and token
// usage labeled by provider and model.
func (m *metricsLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	start := time.Now()
	resp, err := m.next.DoChat(ctx, req)

	labels := map[string]string{
		"provider": m.next.Provider(),
		"model":    req.Model,
		"status":   requestStatus(ctx, err),
	}

	if m.collector != nil {
		m.collector.RecordHistogram(MetricLLMLatency, time.Since(start).Seconds(), labels)
		m.collector.RecordCounter(MetricLLMRequests, 1, labels)

		if err == nil {
			m.collector.RecordCounter(MetricLLMTokens, float64(resp.TokensIn), withLabel(labels, "token_type", "input"))
			m.collector.RecordCounter(MetricLLMTokens, float64(resp.TokensOut), withLabel(labels, "token_type", "output"))
		}
	}

	return resp, err
}

// Unload counts unload calls by outcome.
func (m *metricsLLM) Unload(ctx context.Context, model string) error {
	err := m.next.Unload(ctx, model)
	if m.collector != nil {
		m.collector.RecordCounter(MetricLLMUnloads, 1, map[string]string{
			"provider": m.next.Provider(),
			"model":    model,
			"status":   requestStatus(ctx, err),
		})
	}
	return err
}

// Provider returns the provider name from the wrapped implementation.
func (m *metricsLLM) Provider() string { return m.next.Provider() }

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	default:
		return "error"
	}
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}
