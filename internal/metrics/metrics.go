// Package metrics exposes prometheus collectors for the assistant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vendedor"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	llmLatency   *prometheus.HistogramVec
	cacheHits    prometheus.Counter
	orders       prometheus.Counter
	revenue      prometheus.Counter
	panics       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed customer messages by classifier stage and reply state",
		}, []string{"source", "state"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "Time to produce a reply",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 15},
		}, []string{"source"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "llm_latency_seconds",
			Help:      "Latency of language model completions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 8, 10, 15, 20},
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_hits_total",
			Help:      "Intents served from the resolver cache",
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "confirmed_total",
			Help:      "Confirmed orders",
		}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "revenue_total",
			Help:      "Sum of confirmed order totals in currency units",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "recovered_panics_total",
			Help:      "Turns that failed unexpectedly and were answered with the error reply",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns, m.turnDuration, m.llmLatency, m.cacheHits, m.orders, m.revenue, m.panics,
	)
	return m
}

// TrackGauge exposes a value read at scrape time, e.g. active sessions.
func (m *Metrics) TrackGauge(subsystem, name, help string, read func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, read))
}

// ObserveTurn records one processed message.
func (m *Metrics) ObserveTurn(source, state string, elapsed time.Duration) {
	m.turns.WithLabelValues(source, state).Inc()
	m.turnDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveCompletion records one language model call.
func (m *Metrics) ObserveCompletion(outcome string, elapsed time.Duration) {
	m.llmLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveCacheHit records an intent served from cache.
func (m *Metrics) ObserveCacheHit() {
	m.cacheHits.Inc()
}

// ObserveOrder records a confirmed order and its total.
func (m *Metrics) ObserveOrder(total int64) {
	m.orders.Inc()
	m.revenue.Add(float64(total))
}

// ObservePanic records a recovered failure.
func (m *Metrics) ObservePanic() {
	m.panics.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
