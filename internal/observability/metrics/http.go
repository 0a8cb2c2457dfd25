package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics instruments the ops server routes. Each route is
// wrapped separately so the handler label stays bounded.
type HTTPServerMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPServerMetrics registers the ops server metrics on registry.
func NewHTTPServerMetrics(service string, registry *prometheus.Registry) *HTTPServerMetrics {
	labels := prometheus.Labels{"service": service}
	m := &HTTPServerMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Ops server requests by route, method and status code.",
			ConstLabels: labels,
		}, []string{"handler", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "Ops server request latency by route.",
			Buckets:     []float64{.005, .01, .05, .1, .5, 1, 3},
			ConstLabels: labels,
		}, []string{"handler", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Ops server requests being served.",
			ConstLabels: labels,
		}),
	}
	registry.MustRegister(m.requests, m.duration, m.inFlight)
	return m
}

// Instrument wraps the handler registered for route.
func (m *HTTPServerMetrics) Instrument(route string, next http.Handler) http.Handler {
	curried := prometheus.Labels{"handler": route}
	return promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(curried),
			promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(curried), next),
		),
	)
}
