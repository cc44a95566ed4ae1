package llm

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

type contextKey string

const testContextKey contextKey = "test-key"

// testRequest builds a minimal chat request.
func testRequest(prompt string) ports.ChatRequest {
	return ports.ChatRequest{
		Model:    "test-model",
		Messages: []domain.Message{domain.UserMessage(prompt)},
	}
}

// recordedMetric is one call observed by mockMetricsCollector.
type recordedMetric struct {
	kind   string
	name   string
	value  float64
	labels map[string]string
}

// mockMetricsCollector records every observation for later inspection.
type mockMetricsCollector struct {
	mu      sync.Mutex
	records []recordedMetric
}

var _ ports.MetricsCollector = (*mockMetricsCollector)(nil)

func newMockMetricsCollector() *mockMetricsCollector { return &mockMetricsCollector{} }

func (m *mockMetricsCollector) add(kind, name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	m.records = append(m.records, recordedMetric{kind: kind, name: name, value: value, labels: copied})
}

func (m *mockMetricsCollector) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	m.add("latency", operation, d.Seconds(), labels)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.add("counter", metric, value, labels)
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.add("gauge", metric, value, labels)
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.add("histogram", metric, value, labels)
}

// find returns all records with the given name.
func (m *mockMetricsCollector) find(name string) []recordedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedMetric
	for _, r := range m.records {
		if r.name == name {
			out = append(out, r)
		}
	}
	return out
}

// mockCircuitBreakerMetrics counts circuit breaker events.
type mockCircuitBreakerMetrics struct {
	mu        sync.Mutex
	states    []CircuitBreakerState
	trips     int
	successes int
	failures  int
}

func (m *mockCircuitBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockCircuitBreakerMetrics) RecordTrip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips++
}

func (m *mockCircuitBreakerMetrics) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *mockCircuitBreakerMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func newMockCircuitBreakerMetrics() *mockCircuitBreakerMetrics { return &mockCircuitBreakerMetrics{} }

// testPNGBase64 is a base64 payload that sniffs as image/png.
var testPNGBase64 = base64.StdEncoding.EncodeToString(
	append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 17)...),
)
