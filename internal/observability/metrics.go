package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records turn, search and related-question outcomes. It satisfies
// chat.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	searches       *prometheus.CounterVec
	related        *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewMetrics registers the morph collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "morph_turns_total",
			Help: "Chat turns by provider and outcome",
		}, []string{"provider", "outcome"}),
		turnLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "morph_turn_duration_seconds",
			Help:    "Time from turn start to its terminal event",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "morph_searches_total",
			Help: "Live searches by outcome (ok, empty, error)",
		}, []string{"outcome"}),
		related: f.NewCounterVec(prometheus.CounterOpts{
			Name: "morph_related_questions_total",
			Help: "Related-question generations by outcome",
		}, []string{"outcome"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "morph_active_sessions",
			Help: "Open websocket sessions",
		}),
	}
}

// TurnFinished records a finished turn.
func (m *Metrics) TurnFinished(provider, outcome string, elapsed time.Duration) {
	m.turns.WithLabelValues(provider, outcome).Inc()
	m.turnLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// SearchFinished records a search outcome.
func (m *Metrics) SearchFinished(outcome string) {
	m.searches.WithLabelValues(outcome).Inc()
}

// RelatedFinished records a related-question outcome.
func (m *Metrics) RelatedFinished(outcome string) {
	m.related.WithLabelValues(outcome).Inc()
}

// SessionOpened and SessionClosed track live websocket sessions.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
