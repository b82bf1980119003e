package buffer

import (
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
)

// Option configures a buffer at construction time.
type Option[T any] func(*bufferOptions[T])

// bufferOptions is the resolved configuration. Statistics are not here
// because they are unconditional; only the policy, drop callback and
// optional metrics export vary per buffer.
type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]

	// Set together or not at all. The prefix becomes the component
	// label on the exported metrics.
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithOverflowPolicy sets the full-buffer behavior. The default is
// DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = policy
	}
}

// WithMetrics exports the buffer's statistics as Prometheus metrics
// under the given prefix. A nil registry or empty prefix disables the
// option rather than failing.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback registers a function invoked with every item the
// overflow policy discards.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
