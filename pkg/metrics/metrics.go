// Package metrics exposes Prometheus metrics for live wizard sessions.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formwizard"

// Navigation and submission outcomes.
const (
	ResultMoved    = "moved"
	ResultBlocked  = "blocked"
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds the collectors of one server.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionDuration  prometheus.Histogram
	MessagesReceived *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	Navigations      *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running live sessions",
		}),
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of live sessions started",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of live sessions in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
		}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client messages received by event",
		}, []string{"event"}),
		MessagesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Client messages answered with an error, by event",
		}, []string{"event"}),
		Navigations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Back and next clicks by target and result",
		}, []string{"target", "result"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submit attempts by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionStarted records a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionEnded records the end of a session that lasted d.
func (m *Metrics) SessionEnded(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(d.Seconds())
}

// MessageReceived counts a client message.
func (m *Metrics) MessageReceived(event string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(event).Inc()
}

// MessageRejected counts a client message answered with an error.
func (m *Metrics) MessageRejected(event string) {
	if m == nil {
		return
	}
	m.MessagesRejected.WithLabelValues(event).Inc()
}

// Navigation counts a back or next click.
func (m *Metrics) Navigation(target string, moved bool) {
	if m == nil {
		return
	}
	result := ResultBlocked
	if moved {
		result = ResultMoved
	}
	m.Navigations.WithLabelValues(target, result).Inc()
}

// Submission counts a submit attempt.
func (m *Metrics) Submission(accepted bool) {
	if m == nil {
		return
	}
	result := ResultRejected
	if accepted {
		result = ResultAccepted
	}
	m.Submissions.WithLabelValues(result).Inc()
}
