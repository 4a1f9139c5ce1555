package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// closure relay.
type Metrics struct {
	ClosuresReceived prometheus.Counter
	ClosuresAccepted prometheus.Counter
	ClosuresDropped  *prometheus.CounterVec // labels: reason={duplicate,unassignable,stale,suppressed}

	// Notification delivery metrics.
	NotificationsSent   *prometheus.CounterVec // labels: type={discord,slack}, outcome={success,failure}
	NotificationRetries prometheus.Counter
	DispatchDuration    prometheus.Histogram

	// Feature enrichment metrics.
	EnrichmentFetches  prometheus.Counter
	FeatureCacheHits   prometheus.Counter
	FeatureCacheMisses prometheus.Counter

	TrackedClosures prometheus.Gauge
	BatchDuration   prometheus.Histogram
}

// NewMetrics creates and registers all relay metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ClosuresReceived,
		m.ClosuresAccepted,
		m.ClosuresDropped,
		m.NotificationsSent,
		m.NotificationRetries,
		m.DispatchDuration,
		m.EnrichmentFetches,
		m.FeatureCacheHits,
		m.FeatureCacheMisses,
		m.TrackedClosures,
		m.BatchDuration,
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
		ClosuresReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "closures_received_total",
			Help:      "Total closure events received across all uploads.",
		}),
		ClosuresAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "closures_accepted_total",
			Help:      "Total new closures accepted into the tracking store.",
		}),
		ClosuresDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "closures_dropped_total",
			Help:      "Closures dropped before dispatch, by reason.",
		}, []string{"reason"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "notifications_sent_total",
			Help:      "Webhook deliveries by destination type and outcome.",
		}, []string{"type", "outcome"}),
		NotificationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "notification_retries_total",
			Help:      "Delivery attempts repeated after a rate-limit response.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "closure_relay",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one notification group dispatch across all destinations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		EnrichmentFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "enrichment_fetches_total",
			Help:      "Upstream Features fetches triggered by cache misses.",
		}),
		FeatureCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "feature_cache_hits_total",
			Help:      "Feature cache lookups that found a record.",
		}),
		FeatureCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "closure_relay",
			Name:      "feature_cache_misses_total",
			Help:      "Feature cache lookups that missed.",
		}),
		TrackedClosures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "closure_relay",
			Name:      "tracked_closures",
			Help:      "Number of closure ids in the tracking store.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "closure_relay",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete upload batch through the pipeline.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
