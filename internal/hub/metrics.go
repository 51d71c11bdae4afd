package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the hub's Prometheus collectors.
type Metrics struct {
	ConnectedClients  prometheus.Gauge
	EventsIn          prometheus.Counter
	MalformedEvents   prometheus.Counter
	RateLimited       prometheus.Counter
	BroadcastsSent    prometheus.Counter
	BroadcastsDropped prometheus.Counter
}

// NewMetrics registers the hub collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chathub_connected_clients",
			Help: "Number of live socket connections.",
		}),
		EventsIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "chathub_events_in_total",
			Help: "Inbound socket events accepted for processing.",
		}),
		MalformedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "chathub_malformed_events_total",
			Help: "Inbound events discarded as malformed.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "chathub_rate_limited_events_total",
			Help: "Inbound events discarded by the per-connection rate limiter.",
		}),
		BroadcastsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "chathub_broadcasts_sent_total",
			Help: "Events enqueued to client egress buffers.",
		}),
		BroadcastsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "chathub_broadcasts_dropped_total",
			Help: "Events dropped because a client egress buffer was full.",
		}),
	}
}
