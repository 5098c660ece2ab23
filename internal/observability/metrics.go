package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_radar"

// Metrics holds the Prometheus collectors for the radar runtime and its adapters.
type Metrics struct {
	LoopRunning prometheus.Gauge

	// Incident intake.
	IncidentsActive *prometheus.GaugeVec   // labels: provenance={local,remote}
	Polls           *prometheus.CounterVec // labels: outcome={live,fallback,failed}
	PollDuration    prometheus.Histogram
	StreamEvents    *prometheus.CounterVec // labels: outcome={inserted,duplicate,rejected}
	Reconciliations prometheus.Counter
	Evictions       prometheus.Counter

	// Observer-facing state.
	ProximityTransitions *prometheus.CounterVec // labels: kind={entered,safe}
	FeedAlerts           prometheus.Counter
	Creations            *prometheus.CounterVec // labels: outcome={confirmed,fallback,cooldown,rejected}
	CooldownRemaining    prometheus.Gauge
	APIThrottled         prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_running",
			Help:      "1 when the radar loop is active, 0 when shut down.",
		}),
		IncidentsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents_active",
			Help:      "Incidents currently held in the store by provenance.",
		}, []string{"provenance"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by the tier that answered.",
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete poll cycle including fallback.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Stream messages by outcome.",
		}, []string{"outcome"}),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Local incidents superseded by their server-confirmed twin.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Incidents dropped by the sweep after leaving the active window.",
		}),
		ProximityTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proximity_transitions_total",
			Help:      "Entry and safe transitions emitted by the proximity engine.",
		}, []string{"kind"}),
		FeedAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_alerts_total",
			Help:      "Alerts pushed to the feed.",
		}),
		Creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creations_total",
			Help:      "Incident creation attempts by outcome.",
		}, []string{"outcome"}),
		CooldownRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cooldown_remaining_seconds",
			Help:      "Seconds until another incident may be created.",
		}),
		APIThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_throttled_total",
			Help:      "Control API requests rejected by the per-client rate limit.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place name enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LoopRunning,
		m.IncidentsActive,
		m.Polls,
		m.PollDuration,
		m.StreamEvents,
		m.Reconciliations,
		m.Evictions,
		m.ProximityTransitions,
		m.FeedAlerts,
		m.Creations,
		m.CooldownRemaining,
		m.APIThrottled,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
