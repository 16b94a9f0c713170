package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the chat backend.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RepliesTotal    *prometheus.CounterVec
	FormsGenerated  *prometheus.CounterVec
	SessionsCreated prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "complymate"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"route", "method"},
	)

	repliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_replies_total",
			Help:      "Chat replies by outcome",
		},
		[]string{"outcome"},
	)

	formsGenerated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forms_generated_total",
			Help:      "Generated OSHA form drafts",
		},
		[]string{"form_type"},
	)

	sessionsCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_sessions_created_total",
			Help:      "Chat sessions created",
		},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		repliesTotal,
		formsGenerated,
		sessionsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		RequestsTotal:   requestsTotal,
		RequestDuration: requestDuration,
		RepliesTotal:    repliesTotal,
		FormsGenerated:  formsGenerated,
		SessionsCreated: sessionsCreated,
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records a finished HTTP request. Recording on a nil *Metrics is a no-op.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordReply counts a chat turn outcome: "reply", "form" or "error".
func (m *Metrics) RecordReply(outcome string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(outcome).Inc()
}

// RecordForm counts a generated form draft.
func (m *Metrics) RecordForm(formType string) {
	if m == nil {
		return
	}
	m.FormsGenerated.WithLabelValues(formType).Inc()
}

// RecordSession counts a newly created session.
func (m *Metrics) RecordSession() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}
