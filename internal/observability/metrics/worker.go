package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	failureTotal    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processing cycles by outcome.",
		},
		[]string{"service", "outcome"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bnav",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Processing cycle duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bnav",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight processing cycles.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bnav",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between task publication and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	failureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bnav",
			Subsystem: "worker",
			Name:      "document_failure_total",
			Help:      "Terminal document failures by reason.",
		},
		[]string{"service", "reason"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, failureTotal)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		failureTotal:    failureTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, outcome string) {
	m.processInFlight.Dec()
	m.processTotal.WithLabelValues(service, outcome).Inc()
	m.processDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordFailureReason(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.failureTotal.WithLabelValues(service, reason).Inc()
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// CombinedHandler exposes several metric registries on one endpoint; the
// worker serves its own series and the gateway's from a single listener.
func CombinedHandler(gatherers ...prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers(gatherers), promhttp.HandlerOpts{})
}

// WorkerObserver adapts the worker registry to the processing lifecycle
// events emitted by the use case layer.
type WorkerObserver struct {
	metrics *WorkerMetrics
	service string
}

var _ ports.CycleObserver = (*WorkerObserver)(nil)

func NewWorkerObserver(metrics *WorkerMetrics, service string) *WorkerObserver {
	return &WorkerObserver{metrics: metrics, service: service}
}

func (o *WorkerObserver) CycleStarted() {
	o.metrics.StartDocument()
}

func (o *WorkerObserver) CycleFinished(outcome domain.CycleOutcome, duration time.Duration) {
	o.metrics.FinishDocument(o.service, duration, string(outcome))
}

func (o *WorkerObserver) DocumentFailed(reason domain.FailureReason) {
	o.metrics.RecordFailureReason(o.service, string(reason))
}
