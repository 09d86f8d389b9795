// Package metrics holds the Prometheus collectors shared by the router, the
// sandbox and the HTTP layer. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	providerAttempts *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	renders          *prometheus.CounterVec
	renderLatency    prometheus.Histogram
	supersessions    prometheus.Counter
	requests         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_provider_attempts_total",
				Help: "Provider attempts by provider and outcome kind",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canvas_provider_latency_seconds",
				Help:    "Latency of provider attempts",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_provider_fallbacks_total",
				Help: "Fallbacks from one provider to the next",
			},
			[]string{"from", "to"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_sandbox_renders_total",
				Help: "Sandbox renders by outcome",
			},
			[]string{"outcome"},
		),
		renderLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "canvas_sandbox_render_seconds",
				Help:    "Duration of sandbox renders",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		supersessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "canvas_sandbox_superseded_total",
				Help: "Render outcomes dropped because a newer session existed",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.providerAttempts,
			m.providerLatency,
			m.fallbacks,
			m.renders,
			m.renderLatency,
			m.supersessions,
			m.requests,
		)
	}
	return m
}

func (m *Metrics) ProviderAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) Fallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Render(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(outcome).Inc()
	m.renderLatency.Observe(d.Seconds())
}

func (m *Metrics) Superseded() {
	if m == nil {
		return
	}
	m.supersessions.Inc()
}

func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}
