package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/judgebench/internal/ports"
)

// ErrCircuitOpen is returned without contacting the backend while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Metric names recorded by CollectorBreakerMetrics.
const (
	MetricCircuitState = "llm_circuit_state"
	MetricCircuitTrips = "llm_circuit_trips_total"
)

// CircuitBreakerState is the breaker position. The numeric value is what
// CollectorBreakerMetrics exports as a gauge.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	// StateHalfOpen lets one chat through after the cooldown to find out
	// whether the backend is back.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerMetrics observes breaker transitions and outcomes.
type CircuitBreakerMetrics interface {
	RecordState(state CircuitBreakerState)
	RecordTrip()
	RecordSuccess()
	RecordFailure()
}

// breaker counts consecutive backend failures. Errors that say nothing
// about backend health, such as a cancelled task or a model that was never
// pulled, neither trip it nor reset the count.
type breaker struct {
	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
}

func (b *breaker) call(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
	}

	err := fn()
	switch {
	case err == nil:
		b.failures = 0
		b.state = StateClosed
	case IsRetryable(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	case b.state == StateHalfOpen:
		// The backend answered, so it is up.
		b.state = StateClosed
	}
	return err
}

func (b *breaker) current() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type circuitBreakerLLM struct {
	next    CoreLLM
	b       *breaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware fails chats fast after maxFailures consecutive
// transient failures, for cooldown. Every CoreLLM the middleware wraps gets
// its own breaker, so one provider going down leaves the others usable.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware reporting
// to metrics, which may be nil.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	return func(next CoreLLM) CoreLLM {
		b := &breaker{maxFailures: maxFailures, cooldown: cooldown}
		return &circuitBreakerLLM{next: next, b: b, metrics: metrics}
	}
}

func (c *circuitBreakerLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	err := c.b.call(func() error {
		var err error
		resp, err = c.next.DoChat(ctx, req)
		return err
	})

	if c.metrics != nil {
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.b.current())
	}
	return resp, err
}

// Unload bypasses the breaker so a model can be evicted between the
// conversation and judge phases even while chats are failing fast.
func (c *circuitBreakerLLM) Unload(ctx context.Context, model string) error {
	return c.next.Unload(ctx, model)
}

func (c *circuitBreakerLLM) Provider() string { return c.next.Provider() }

// collectorBreakerMetrics exports breaker activity through a
// MetricsCollector. Successes and failures are already counted by
// MetricsMiddleware.
type collectorBreakerMetrics struct {
	collector ports.MetricsCollector
}

// CollectorBreakerMetrics adapts collector to CircuitBreakerMetrics.
func CollectorBreakerMetrics(collector ports.MetricsCollector) CircuitBreakerMetrics {
	return collectorBreakerMetrics{collector: collector}
}

func (m collectorBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.collector.RecordGauge(MetricCircuitState, float64(state), map[string]string{"state": state.String()})
}

func (m collectorBreakerMetrics) RecordTrip() {
	m.collector.RecordCounter(MetricCircuitTrips, 1, nil)
}

func (collectorBreakerMetrics) RecordSuccess() {}
func (collectorBreakerMetrics) RecordFailure() {}
