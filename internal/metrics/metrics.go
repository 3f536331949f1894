package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure kinds reported by the session controller.
const (
	KindConfiguration = "configuration"
	KindStop          = "stop"
)

// Metrics holds Prometheus collectors for the recorder daemon. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	sessionsStarted  prometheus.Counter
	sessionsDone     prometheus.Counter
	sessionSeconds   prometheus.Histogram
	failures         *prometheus.CounterVec
	recording        prometheus.Gauge
	eventsDropped    prometheus.Counter
	commandsReceived *prometheus.CounterVec
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "recorder",
			Name:      "sessions_started_total",
			Help:      "Number of recording sessions started.",
		}),
		sessionsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "recorder",
			Name:      "sessions_completed_total",
			Help:      "Number of recording sessions that finished with a playable file.",
		}),
		sessionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "htt",
			Subsystem: "recorder",
			Name:      "session_duration_seconds",
			Help:      "Duration of completed recording sessions.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "recorder",
			Name:      "failures_total",
			Help:      "Recording failures by kind (configuration, stop).",
		}, []string{"kind"}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "htt",
			Subsystem: "recorder",
			Name:      "recording",
			Help:      "1 while a recording session is active.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Status events not delivered because a subscriber queue was full.",
		}),
		commandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "commands",
			Name:      "received_total",
			Help:      "Commands received by transport and action.",
		}, []string{"source", "action"}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests received.",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "htt",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total number of HTTP responses with error status (4xx or 5xx).",
		}),
	}

	registry.MustRegister(
		m.sessionsStarted,
		m.sessionsDone,
		m.sessionSeconds,
		m.failures,
		m.recording,
		m.eventsDropped,
		m.commandsReceived,
		m.requestsTotal,
		m.errorsTotal,
	)
	return m
}

// SessionStarted counts a started session and raises the recording gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.recording.Set(1)
}

// SessionCompleted records a successful session of the given length in seconds.
func (m *Metrics) SessionCompleted(seconds float64) {
	if m == nil {
		return
	}
	m.sessionsDone.Inc()
	m.sessionSeconds.Observe(seconds)
}

// SetRecording sets the recording gauge.
func (m *Metrics) SetRecording(active bool) {
	if m == nil {
		return
	}
	if active {
		m.recording.Set(1)
		return
	}
	m.recording.Set(0)
}

// Failure counts a failure of the given kind.
func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// EventDropped counts an undelivered status event.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// CommandReceived counts a command from the given transport.
func (m *Metrics) CommandReceived(source, action string) {
	if m == nil {
		return
	}
	m.commandsReceived.WithLabelValues(source, action).Inc()
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// Registry exposes the private registry, for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
