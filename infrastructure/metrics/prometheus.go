// Package metrics exports benchmark and inference metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/judgebench/internal/ports"
)

// Metric names understood by PrometheusMetrics. They match the names
// recorded by the tester and by the LLM metrics middleware.
const (
	metricTasks         = "tasks_total"
	metricTasksInFlight = "tasks_in_flight"
	metricJudgeRating   = "judge_rating"
	metricLLMLatency    = "llm_latency_seconds"
	metricLLMRequests   = "llm_requests_total"
	metricLLMTokens     = "llm_tokens_total"
	metricLLMUnloads    = "llm_unloads_total"
)

const namespace = "judgebench"

// PrometheusMetrics implements ports.MetricsCollector using Prometheus. It
// tracks benchmark phase durations, judge ratings and task outcomes, plus
// request counts, latency and token usage of the inference backends.
type PrometheusMetrics struct {
	phaseDuration *prometheus.HistogramVec
	judgeRating   *prometheus.HistogramVec
	tasks         *prometheus.CounterVec
	tasksInFlight prometheus.Gauge

	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmUnloads  *prometheus.CounterVec

	operationCounter *prometheus.CounterVec
	otherGauges      *prometheus.GaugeVec
	otherHistograms  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg uses the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// Benchmark metrics.
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Time spent capturing transcripts and judging them.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"operation", "mode", "model"},
		),
		judgeRating: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "judge_rating",
				Help:      "Distribution of judge total ratings.",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"judge_model"},
		),
		tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Evaluated tasks by outcome.",
			},
			[]string{"status"},
		),
		tasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_in_flight",
				Help:      "Tasks currently being evaluated.",
			},
		),

		// Inference metrics.
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Latency of chat requests to inference backends.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Chat requests sent to inference backends.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens consumed by chat requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		llmUnloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_unloads_total",
				Help:      "Model unload requests.",
			},
			[]string{"provider", "model", "status"},
		),

		// Catch-all metrics for names this collector does not model.
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Counters recorded under names without a dedicated metric.",
			},
			[]string{"metric"},
		),
		otherGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Gauges recorded under names without a dedicated metric.",
			},
			[]string{"metric"},
		),
		otherHistograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "observations",
				Help:      "Histogram values recorded under names without a dedicated metric.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records a benchmark phase duration.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.phaseDuration.WithLabelValues(
		operation,
		labelOr(labels, "mode", "unknown"),
		labelOr(labels, "model", "unknown"),
	).Observe(duration.Seconds())
}

// RecordCounter increments the counter registered for metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case metricTasks:
		pm.tasks.WithLabelValues(labelOr(labels, "status", "unknown")).Add(value)
	case metricLLMRequests:
		pm.llmRequests.WithLabelValues(llmLabels(labels, "status")...).Add(value)
	case metricLLMTokens:
		pm.llmTokens.WithLabelValues(llmLabels(labels, "token_type")...).Add(value)
	case metricLLMUnloads:
		pm.llmUnloads.WithLabelValues(llmLabels(labels, "status")...).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the gauge registered for metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	switch metric {
	case metricTasksInFlight:
		pm.tasksInFlight.Set(value)
	default:
		pm.otherGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram observes value in the histogram registered for metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case metricJudgeRating:
		pm.judgeRating.WithLabelValues(labelOr(labels, "judge_model", "unknown")).Observe(value)
	case metricLLMLatency:
		pm.llmLatency.WithLabelValues(llmLabels(labels, "status")...).Observe(value)
	default:
		pm.otherHistograms.WithLabelValues(metric).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

func llmLabels(labels map[string]string, third string) []string {
	return []string{
		labelOr(labels, "provider", "unknown"),
		labelOr(labels, "model", "unknown"),
		labelOr(labels, third, "unknown"),
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
