package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the messaging module.
type Metrics struct {
	// Broadcasts by outcome (ok, failed).
	Broadcasts *prometheus.CounterVec

	// Linked recipients per broadcast, after dedup and cap.
	RecipientsPerBroadcast prometheus.Histogram

	// Broadcasts that hit the fan-out cap.
	Truncations prometheus.Counter

	// Outbox entries published to the broker.
	OutboxPublished prometheus.Counter
}

// New creates a new Metrics instance with all messaging metrics registered.
func New() *Metrics {
	return &Metrics{
		Broadcasts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arenadesk_messaging_broadcasts_total",
			Help: "Total broadcast operations by outcome",
		}, []string{"outcome"}),

		RecipientsPerBroadcast: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arenadesk_messaging_recipients_per_broadcast",
			Help:    "Linked recipients per broadcast after dedup and cap",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 2000},
		}),

		Truncations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arenadesk_messaging_truncations_total",
			Help: "Broadcasts whose recipient set was cut at the fan-out cap",
		}),

		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arenadesk_messaging_outbox_published_total",
			Help: "Outbox entries published to the broker",
		}),
	}
}

// ObserveBroadcast records one finished broadcast.
func (m *Metrics) ObserveBroadcast(outcome string, recipients int) {
	if m != nil {
		m.Broadcasts.WithLabelValues(outcome).Inc()
		if outcome == "ok" {
			m.RecipientsPerBroadcast.Observe(float64(recipients))
		}
	}
}

// IncrementTruncations records a capped broadcast.
func (m *Metrics) IncrementTruncations() {
	if m != nil {
		m.Truncations.Inc()
	}
}

// AddOutboxPublished records published outbox entries.
func (m *Metrics) AddOutboxPublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}
