package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "wsnotify"

// RelayMetrics holds Prometheus metrics for the relay hub.
type RelayMetrics struct {
	ActivePeers       prometheus.Gauge
	BroadcastsRelayed prometheus.Counter
	FramesDropped     *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_peers",
			Help:      "Number of connected WebSocket peers.",
		}),
		BroadcastsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcasts_relayed_total",
			Help:      "Total number of broadcast frames relayed to peers.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped by the relay, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActivePeers, m.BroadcastsRelayed, m.FramesDropped)
	return m
}

// Drop reasons.
const (
	ReasonMalformed   = "malformed"
	ReasonUnknown     = "unknown"
	ReasonRateLimited = "rate_limited"
)
