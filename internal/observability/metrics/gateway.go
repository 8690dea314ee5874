package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type GatewayMetrics struct {
	registry *prometheus.Registry

	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	attemptsTotal *prometheus.CounterVec
	tokensTotal   *prometheus.CounterVec
	costTotal     *prometheus.CounterVec
	sanitizerHits *prometheus.CounterVec
}

func NewGatewayMetrics(service string) *GatewayMetrics {
	registry := prometheus.NewRegistry()

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total gateway calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Gateway call duration in seconds, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "provider_attempts_total",
			Help:      "Total provider invocations, one per retry attempt.",
		},
		[]string{"service", "operation"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "tokens_total",
			Help:      "Token usage reported by the provider, by direction.",
		},
		[]string{"service", "operation", "direction"},
	)
	costTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "cost_total",
			Help:      "Estimated provider cost in account currency units.",
		},
		[]string{"service", "operation"},
	)
	sanitizerHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "gateway",
			Name:      "sanitizer_hits_total",
			Help:      "Prompt fragments neutralized by the input sanitizer.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(callsTotal, callDuration, attemptsTotal, tokensTotal, costTotal, sanitizerHits)

	return &GatewayMetrics{
		registry:      registry,
		callsTotal:    callsTotal,
		callDuration:  callDuration,
		attemptsTotal: attemptsTotal,
		tokensTotal:   tokensTotal,
		costTotal:     costTotal,
		sanitizerHits: sanitizerHits,
	}
}

func (m *GatewayMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *GatewayMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *GatewayMetrics) RecordCall(service, operation, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.callsTotal.WithLabelValues(service, operation, outcome).Inc()
	m.callDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func (m *GatewayMetrics) RecordAttempt(service, operation string) {
	m.attemptsTotal.WithLabelValues(service, operation).Inc()
}

func (m *GatewayMetrics) RecordUsage(service, operation string, promptTokens, completionTokens int, cost float64) {
	if promptTokens > 0 {
		m.tokensTotal.WithLabelValues(service, operation, "in").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokensTotal.WithLabelValues(service, operation, "out").Add(float64(completionTokens))
	}
	if cost > 0 {
		m.costTotal.WithLabelValues(service, operation).Add(cost)
	}
}

func (m *GatewayMetrics) RecordSanitizerHits(service, operation string, hits int) {
	if hits <= 0 {
		return
	}
	m.sanitizerHits.WithLabelValues(service, operation).Add(float64(hits))
}
