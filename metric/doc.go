// Package metric provides Prometheus metrics infrastructure for the gateway.
//
// # Overview
//
// The package wraps a dedicated prometheus.Registry with core platform
// metrics (service status, message counters, NATS connection health) and a
// registration API that components use to expose their own metrics without
// colliding with each other.
//
// # Core Components
//
// MetricsRegistry: owns the underlying Prometheus registry, pre-registers
// the core platform metrics and the Go runtime collectors, and tracks
// per-component registrations so duplicates are rejected with a clear error.
//
// Metrics: the core platform metric set, shared by all components through
// the registry. Components record into it via the RecordX helpers.
//
// Server: a small HTTP server exposing the registry on /metrics in
// OpenMetrics format.
//
// # Component metrics
//
// Components follow the nil-registry = nil-feature pattern: constructors
// accept an optional *MetricsRegistry and skip metric creation entirely
// when it is nil, so unit tests never need a registry.
//
//	metrics := newMetrics(cfg.MetricsRegistry)
//	...
//	if m.metrics != nil {
//	    m.metrics.sessionsActive.Inc()
//	}
//
// All core metrics use the namespace "gateway":
//   - gateway_service_status{service="..."}
//   - gateway_messages_published_total{service="..."}
//   - gateway_nats_connected
package metric
