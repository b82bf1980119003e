package notify

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
)

// Metrics holds Prometheus metrics shared by the registry and dispatcher
type Metrics struct {
	connectionsActive prometheus.Gauge
	dispatches        *prometheus.CounterVec
	sessionsTargeted  prometheus.Counter
	deliveries        prometheus.Counter
	deliveryFailures  prometheus.Counter
	filteredOut       prometheus.Counter
	broadcastDuration prometheus.Histogram
	sourceMessages    *prometheus.CounterVec
}

// NewMetrics creates and registers notification delivery metrics
func NewMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "push_connections_active",
			Help:      "Number of currently open push connections",
		}),

		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches by method",
		}, []string{"method"}),

		sessionsTargeted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "sessions_targeted_total",
			Help:      "Total per-session deliveries attempted",
		}),

		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Total events delivered to push connections",
		}),

		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "delivery_failures_total",
			Help:      "Total failed push connection writes",
		}),

		filteredOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "filtered_out_total",
			Help:      "Sessions skipped by the resource subscription filter",
		}),

		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to broadcast one event to a session's connections",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		sourceMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "notify",
			Name:      "source_messages_total",
			Help:      "Total bus messages received by the NATS source",
		}, []string{"status"}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.connectionsActive,
		metrics.dispatches,
		metrics.sessionsTargeted,
		metrics.deliveries,
		metrics.deliveryFailures,
		metrics.filteredOut,
		metrics.broadcastDuration,
		metrics.sourceMessages,
	)

	return metrics
}
