package mqtt

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client's Prometheus counters and gauges, covering both
// wire traffic and OTA update outcomes. New leaves Client.metrics nil until
// WithMetrics is called, and every call site checks for nil before
// touching it.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	PacketsReceived   prometheus.Counter
	BytesReceived     prometheus.Counter
	PacketsSent       prometheus.Counter
	BytesSent         prometheus.Counter

	UpdatesApplied prometheus.Counter
	UpdatesFailed  prometheus.Counter
	UpdateState    prometheus.Gauge
}

// NewMetrics registers the client's counters/gauges against reg. Passing a
// dedicated prometheus.NewRegistry() per client avoids collisions with the
// global default registry when more than one Client runs in a process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_active_connections", Help: "1 if the client currently holds an open transport, else 0.",
		}),
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_packets_received_total", Help: "Control packets read from the transport.",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_bytes_received_total", Help: "Bytes read from the transport.",
		}),
		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_packets_sent_total", Help: "Control packets written to the transport.",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_bytes_sent_total", Help: "Bytes written to the transport.",
		}),
		UpdatesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "ota_updates_applied_total", Help: "Manifest entries successfully installed.",
		}),
		UpdatesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ota_updates_failed_total", Help: "Manifest entries that failed validation or install.",
		}),
		UpdateState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ota_update_state", Help: "Current UpdateChannel state, as an ordinal (see update.State).",
		}),
	}
}

// Handler returns an http.Handler serving these metrics in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
