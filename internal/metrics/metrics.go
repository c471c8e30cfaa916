// Package metrics exposes prometheus collectors for the chemsolve server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	warnings    *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// New registers the chemsolve collectors plus the Go runtime collectors on
// a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chemsolve",
			Name:      "requests_total",
			Help:      "Requests by operation and outcome kind (ok or an error kind).",
		}, []string{"op", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chemsolve",
			Name:      "solve_duration_seconds",
			Help:      "Time spent in the engine per operation.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"op"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chemsolve",
			Name:      "warnings_total",
			Help:      "Non-fatal warnings attached to equilibrium results.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chemsolve",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.warnings,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished operation. kind is "ok" on success.
func (m *Metrics) ObserveRequest(op, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, kind).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestsCollector and friends give tests access to individual series.
func (m *Metrics) RequestsCollector() *prometheus.CounterVec { return m.requests }
func (m *Metrics) WarningsCollector() *prometheus.CounterVec { return m.warnings }
func (m *Metrics) RateLimitedCollector() prometheus.Counter  { return m.rateLimited }
