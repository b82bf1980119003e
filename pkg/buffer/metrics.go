package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
)

// bufferMetrics mirrors the buffer's statistics into Prometheus. All
// metrics live under gateway_buffer_* with the owning component as a
// const label, so every replay buffer instance is distinguishable.
type bufferMetrics struct {
	writes    prometheus.Counter
	reads     prometheus.Counter
	peeks     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func bufferCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "gateway",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

func bufferGauge(prefix, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "gateway",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newBufferMetrics builds and registers the instrument set. Returns the
// registry's error unchanged so duplicate registration surfaces to the
// buffer constructor.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		writes:      bufferCounter(prefix, "writes_total", "Total number of buffer write operations"),
		reads:       bufferCounter(prefix, "reads_total", "Total number of buffer read operations"),
		peeks:       bufferCounter(prefix, "peeks_total", "Total number of buffer peek operations"),
		overflows:   bufferCounter(prefix, "overflows_total", "Total number of buffer overflow events"),
		drops:       bufferCounter(prefix, "drops_total", "Total number of items dropped due to overflow"),
		size:        bufferGauge(prefix, "size", "Current number of items in buffer"),
		utilization: bufferGauge(prefix, "utilization", "Buffer utilization as a fraction (0.0 to 1.0)"),
	}

	registrations := []struct {
		name    string
		counter prometheus.Counter
		gauge   prometheus.Gauge
	}{
		{name: "buffer_writes", counter: m.writes},
		{name: "buffer_reads", counter: m.reads},
		{name: "buffer_peeks", counter: m.peeks},
		{name: "buffer_overflows", counter: m.overflows},
		{name: "buffer_drops", counter: m.drops},
		{name: "buffer_size", gauge: m.size},
		{name: "buffer_utilization", gauge: m.utilization},
	}

	for _, reg := range registrations {
		var err error
		if reg.counter != nil {
			err = registry.RegisterCounter(prefix, reg.name, reg.counter)
		} else {
			err = registry.RegisterGauge(prefix, reg.name, reg.gauge)
		}
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordRead(size, capacity int) {
	m.reads.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordPeek() {
	m.peeks.Inc()
}

func (m *bufferMetrics) recordOverflow() {
	m.overflows.Inc()
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
