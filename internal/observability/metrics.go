package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the gateway.
type Metrics struct {
	TileRequests *prometheus.CounterVec // labels: layer, outcome={success,no_imagery,error}
	TileCache    *prometheus.CounterVec // labels: result={hit,miss}

	UpstreamDuration *prometheus.HistogramVec // labels: provider={sentinel,openweather,floodapi,groq,supabase}
	UpstreamErrors   *prometheus.CounterVec   // labels: provider

	AuthOperations *prometheus.CounterVec // labels: operation={register,login,guest,me}, outcome={success,error}
	RateLimited    prometheus.Counter

	AlertsPublished prometheus.Counter
	AlertsEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all gateway metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.TileRequests,
		m.TileCache,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.AuthOperations,
		m.RateLimited,
		m.AlertsPublished,
		m.AlertsEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "tile_requests_total",
			Help:      "Satellite tile requests by layer and outcome.",
		}, []string{"layer", "outcome"}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "tile_cache_total",
			Help:      "Tile cache lookups by result.",
		}, []string{"result"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lankasat",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "upstream_errors_total",
			Help:      "Upstream provider request failures.",
		}, []string{"provider"}),
		AuthOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "auth_operations_total",
			Help:      "Authentication operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lankasat",
			Name:      "flood_alerts_published_total",
			Help:      "Flood alert events published to Kafka.",
		}),
		AlertsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lankasat",
			Name:      "flood_alerts_enabled",
			Help:      "1 when flood alert publishing is enabled, 0 otherwise.",
		}),
	}
}
