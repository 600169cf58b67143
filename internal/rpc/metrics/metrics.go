package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for downstream rpc calls.
type Metrics struct {
	// Call outcomes by service, command and outcome
	// (ok, rejected, timeout, unavailable, malformed).
	Calls *prometheus.CounterVec

	// Round-trip latency by service and command.
	CallLatency *prometheus.HistogramVec

	// Calls currently awaiting a correlated reply.
	InFlight prometheus.Gauge
}

// New creates a new Metrics instance with all rpc metrics registered.
func New() *Metrics {
	return &Metrics{
		Calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arenadesk_rpc_calls_total",
			Help: "Total downstream rpc calls by service, command and outcome",
		}, []string{"service", "command", "outcome"}),

		CallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arenadesk_rpc_call_duration_seconds",
			Help:    "Round-trip duration of downstream rpc calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"service", "command"}),

		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arenadesk_rpc_in_flight",
			Help: "Number of rpc calls currently awaiting a reply",
		}),
	}
}

// ObserveCall records one finished call.
func (m *Metrics) ObserveCall(service, command, outcome string, d time.Duration) {
	if m != nil {
		m.Calls.WithLabelValues(service, command, outcome).Inc()
		m.CallLatency.WithLabelValues(service, command).Observe(d.Seconds())
	}
}

// CallStarted marks a call as in flight.
func (m *Metrics) CallStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

// CallFinished marks a call as no longer in flight.
func (m *Metrics) CallFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
