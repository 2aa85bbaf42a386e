package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the bridge services.
type Metrics struct {
	EventsProcessed  prometheus.Counter
	EventsMalformed  prometheus.Counter
	EventsBelowLimit prometheus.Counter
	Decisions        *prometheus.CounterVec
	Skips            *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	PassDuration     prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_events_processed_total",
			Help: "Maritime events accepted into a correlation pass",
		}),
		EventsMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_malformed_total",
			Help: "Inbound records skipped because a required field was missing or invalid",
		}),
		EventsBelowLimit: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_events_below_threshold_total",
			Help: "Maritime events left to local port handling",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_alert_decisions_total",
			Help: "Alert decisions emitted, by severity",
		}, []string{"severity"}),
		Skips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_correlation_skips_total",
			Help: "Windows that produced no decision, by reason",
		}, []string{"reason"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_deliveries_total",
			Help: "Alert deliveries attempted, by result",
		}, []string{"result"}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_correlation_pass_seconds",
			Help:    "Wall time of one correlation pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
