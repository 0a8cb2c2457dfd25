package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const namespace = "research_bot"

// WorkflowMetrics implements ports.WorkflowObserver and the extractor's
// per-attempt observer.
type WorkflowMetrics struct {
	service  string
	registry *prometheus.Registry

	workflowTotal    *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	workflowInFlight prometheus.Gauge
	degradedTotal    *prometheus.CounterVec
	attemptTotal     *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	documentPages    prometheus.Histogram
	breakerOpen      *prometheus.GaugeVec
}

func NewWorkflowMetrics(service string) *WorkflowMetrics {
	registry := prometheus.NewRegistry()

	workflowTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total finished ingestion runs by status and last stage.",
		},
		[]string{"service", "status", "stage"},
	)
	workflowDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Ingestion run duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 180, 300, 600},
		},
		[]string{"service", "status"},
	)
	workflowInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "in_flight",
			Help:      "Number of ingestion runs in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "degraded_total",
			Help:      "Successful runs whose record or attachment could not be stored.",
		},
		[]string{"service"},
	)
	attemptTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "attempts_total",
			Help:      "Metadata extraction attempts by model and status.",
		},
		[]string{"service", "model", "status"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "attempt_duration_seconds",
			Help:      "Metadata extraction attempt duration in seconds by model.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 180},
		},
		[]string{"service", "model"},
	)
	documentPages := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "workflow",
			Name:        "document_pages",
			Help:        "Page count of downloaded documents.",
			Buckets:     []float64{1, 5, 10, 20, 40, 80, 160},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "breaker",
			Name:        "open",
			Help:        "1 while the circuit breaker of an outbound operation is open.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		workflowTotal,
		workflowDuration,
		workflowInFlight,
		degradedTotal,
		attemptTotal,
		attemptDuration,
		documentPages,
		breakerOpen,
	)

	return &WorkflowMetrics{
		service:          service,
		registry:         registry,
		workflowTotal:    workflowTotal,
		workflowDuration: workflowDuration,
		workflowInFlight: workflowInFlight,
		degradedTotal:    degradedTotal,
		attemptTotal:     attemptTotal,
		attemptDuration:  attemptDuration,
		documentPages:    documentPages,
		breakerOpen:      breakerOpen,
	}
}

func (m *WorkflowMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkflowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkflowMetrics) StartWorkflow() {
	m.workflowInFlight.Inc()
}

func (m *WorkflowMetrics) FinishWorkflow(outcome domain.WorkflowOutcome) {
	m.workflowInFlight.Dec()

	status := "success"
	if !outcome.Success {
		status = "error"
	}
	stage := string(outcome.Stage)
	if stage == "" {
		stage = "unknown"
	}
	m.workflowTotal.WithLabelValues(m.service, status, stage).Inc()
	m.workflowDuration.WithLabelValues(m.service, status).Observe(outcome.Duration().Seconds())
	if outcome.Success && outcome.Degraded {
		m.degradedTotal.WithLabelValues(m.service).Inc()
	}
}

func (m *WorkflowMetrics) ObservePages(pages int) {
	if pages <= 0 {
		return
	}
	m.documentPages.Observe(float64(pages))
}

func (m *WorkflowMetrics) ObserveExtractionAttempt(model string, err error, duration time.Duration) {
	if model == "" {
		model = "unknown"
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	default:
		status = "error"
	}
	m.attemptTotal.WithLabelValues(m.service, model, status).Inc()
	m.attemptDuration.WithLabelValues(m.service, model).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *WorkflowMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to == "open" {
		open = 1
	}
	m.breakerOpen.WithLabelValues(operation).Set(open)
}
