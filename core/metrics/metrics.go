// Package metrics exposes the bot's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adboard"

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	updates    *prometheus.CounterVec
	handlers   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	channelOps *prometheus.CounterVec
	rateLimit  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		handlers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency, by handler and status.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"handler", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Workflow steps, by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		channelOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_ops_total",
			Help:      "Channel publisher calls, by operation and status.",
		}, []string{"op", "status"}),
		rateLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.handlers, m.outcomes, m.channelOps, m.rateLimit,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpdate counts one received update.
func (m *Metrics) ObserveUpdate(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// ObserveHandler records the latency of one handler run.
func (m *Metrics) ObserveHandler(handler, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.handlers.WithLabelValues(handler, status).Observe(took.Seconds())
}

// ObserveOutcome counts a workflow step result.
func (m *Metrics) ObserveOutcome(workflow, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(workflow, outcome).Inc()
}

// ObserveChannel counts a publisher call.
func (m *Metrics) ObserveChannel(op, status string) {
	if m == nil {
		return
	}
	m.channelOps.WithLabelValues(op, status).Inc()
}

// ObserveRateLimited counts one dropped update.
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimit.Inc()
}

// TrackSessions exposes the active session count as a gauge sampled at scrape time.
func (m *Metrics) TrackSessions(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Conversations currently in progress.",
	}, func() float64 { return float64(count()) }))
}
