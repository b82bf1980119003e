package duplex

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
)

// Metrics holds Prometheus metrics for the duplex engine
type Metrics struct {
	connectionsActive prometheus.Gauge
	streamsActive     prometheus.Gauge
	streamsOpened     prometheus.Counter
	streamsCompleted  prometheus.Counter
	streamsErrored    prometheus.Counter
	bytesReceived     prometheus.Counter
	framesRejected    prometheus.Counter
}

// newMetrics creates and registers duplex engine metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "connections_active",
			Help:      "Number of open duplex connections",
		}),

		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "streams_active",
			Help:      "Number of non-terminal streams across all connections",
		}),

		streamsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "streams_opened_total",
			Help:      "Total streams opened by either side",
		}),

		streamsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "streams_completed_total",
			Help:      "Total streams that reached both half-closes",
		}),

		streamsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "streams_errored_total",
			Help:      "Total streams aborted by error, idle timeout or connection loss",
		}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "bytes_received_total",
			Help:      "Total chunk payload bytes received from peers",
		}),

		framesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "duplex",
			Name:      "frames_rejected_total",
			Help:      "Total frames dropped for unknown or terminal stream ids",
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.connectionsActive,
		metrics.streamsActive,
		metrics.streamsOpened,
		metrics.streamsCompleted,
		metrics.streamsErrored,
		metrics.bytesReceived,
		metrics.framesRejected,
	)

	return metrics
}
