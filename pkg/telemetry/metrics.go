package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the workflow engine.
type Metrics struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	retriesTotal     *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
	cacheEventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with its own registry so tests
// and embedded servers never collide on the global one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_executions_total",
				Help: "Total number of workflow executions by final status",
			},
			[]string{"status"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgate_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_operations_total",
				Help: "Total number of executed operations by kind and status",
			},
			[]string{"kind", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgate_operation_duration_seconds",
				Help:    "Operation execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_retries_total",
				Help: "Retry attempts performed by operation kind",
			},
			[]string{"kind"},
		),

		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_rate_limited_total",
				Help: "Operations rejected by the rate limiter, per agent",
			},
			[]string{"agent_id"},
		),

		cacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_cache_events_total",
				Help: "Result cache hits and misses by operation kind",
			},
			[]string{"kind", "event"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.executionsTotal,
		m.executionDuration,
		m.operationsTotal,
		m.operationDuration,
		m.retriesTotal,
		m.rateLimitedTotal,
		m.cacheEventsTotal,
	)

	return m
}

// RecordExecution records a finished workflow execution.
func (m *Metrics) RecordExecution(status string, duration time.Duration) {
	m.executionsTotal.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordOperation records a finished operation.
func (m *Metrics) RecordOperation(kind, status string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(kind, status).Inc()
	m.operationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry(kind string) {
	m.retriesTotal.WithLabelValues(kind).Inc()
}

// RecordRateLimited records a rate limiter rejection.
func (m *Metrics) RecordRateLimited(agentID string) {
	m.rateLimitedTotal.WithLabelValues(agentID).Inc()
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit(kind string) {
	m.cacheEventsTotal.WithLabelValues(kind, "hit").Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss(kind string) {
	m.cacheEventsTotal.WithLabelValues(kind, "miss").Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
