// Package metrics holds the Prometheus instrumentation for the triage
// pipeline. A single Metrics value is created at startup and threaded into
// the components that report; a nil *Metrics is valid and records nothing,
// which keeps tests and the stdio surfaces free of registry plumbing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for triage observability.
type Metrics struct {
	ProviderCalls    *prometheus.CounterVec // Adapter attempts by provider and status
	ProviderLatency  *prometheus.HistogramVec
	CascadeExhausted prometheus.Counter // Model turns where every provider failed
	TriagesTotal     *prometheus.CounterVec
	TriageIterations prometheus.Histogram
	TriageDuration   prometheus.Histogram
	ToolExecutions   *prometheus.CounterVec // Function executions by name and status
}

// NewMetrics creates Prometheus metrics for one agent instance. The
// registerer parameter allows flexible registration (global registry, test
// registry); instanceName distinguishes concurrent agents via ConstLabels.
func NewMetrics(reg prometheus.Registerer, instanceName string) *Metrics {
	labels := prometheus.Labels{"instance": instanceName}

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "triage_provider_calls_total",
		Help:        "Total LLM adapter attempts by provider and status",
		ConstLabels: labels,
	}, []string{"provider", "status"})

	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "triage_provider_latency_seconds",
		Help:        "Latency of individual LLM adapter attempts",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"provider"})

	cascadeExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "triage_cascade_exhausted_total",
		Help:        "Model turns where every configured provider failed",
		ConstLabels: labels,
	})

	triagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "triage_runs_total",
		Help:        "Completed triage runs by terminal status",
		ConstLabels: labels,
	}, []string{"status"})

	triageIterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "triage_iterations",
		Help:        "Agent loop iterations consumed per triage run",
		ConstLabels: labels,
		Buckets:     []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	triageDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "triage_duration_seconds",
		Help:        "Wall-clock duration of triage runs",
		ConstLabels: labels,
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	toolExecutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "triage_tool_executions_total",
		Help:        "Registered function executions by name and status",
		ConstLabels: labels,
	}, []string{"function", "status"})

	reg.MustRegister(providerCalls)
	reg.MustRegister(providerLatency)
	reg.MustRegister(cascadeExhausted)
	reg.MustRegister(triagesTotal)
	reg.MustRegister(triageIterations)
	reg.MustRegister(triageDuration)
	reg.MustRegister(toolExecutions)

	return &Metrics{
		ProviderCalls:    providerCalls,
		ProviderLatency:  providerLatency,
		CascadeExhausted: cascadeExhausted,
		TriagesTotal:     triagesTotal,
		TriageIterations: triageIterations,
		TriageDuration:   triageDuration,
		ToolExecutions:   toolExecutions,
	}
}

// RecordProviderCall counts one adapter attempt and its latency.
func (m *Metrics) RecordProviderCall(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, status).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordCascadeExhausted counts a model turn that ran out of providers.
func (m *Metrics) RecordCascadeExhausted() {
	if m == nil {
		return
	}
	m.CascadeExhausted.Inc()
}

// RecordTriage counts a finished run with its terminal status.
func (m *Metrics) RecordTriage(status string, iterations int, seconds float64) {
	if m == nil {
		return
	}
	m.TriagesTotal.WithLabelValues(status).Inc()
	m.TriageIterations.Observe(float64(iterations))
	m.TriageDuration.Observe(seconds)
}

// RecordToolExecution counts one registered function execution.
func (m *Metrics) RecordToolExecution(function, status string) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(function, status).Inc()
}
