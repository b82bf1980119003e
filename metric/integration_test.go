package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackerStub stands in for a gateway component that registers its own
// metrics through the MetricsRegistrar interface, the way the session
// manager and dispatcher do.
type trackerStub struct {
	name           string
	eventsBuffered prometheus.Counter
	sessionsActive prometheus.Gauge
}

func newTrackerStub(name string) *trackerStub {
	return &trackerStub{name: name}
}

func (s *trackerStub) RegisterMetrics(registrar MetricsRegistrar) error {
	s.eventsBuffered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "tracker_stub",
		Name:      "events_buffered_total",
		Help:      "Total events appended to replay buffers",
	})
	if err := registrar.RegisterCounter(s.name, "events_buffered_total", s.eventsBuffered); err != nil {
		return err
	}

	s.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "tracker_stub",
		Name:      "sessions_active",
		Help:      "Sessions currently tracked",
	})
	return registrar.RegisterGauge(s.name, "sessions_active", s.sessionsActive)
}

func (s *trackerStub) track(events, sessions int) {
	s.eventsBuffered.Add(float64(events))
	s.sessionsActive.Set(float64(sessions))
}

func TestMetricsIntegration_ComponentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	stub := newTrackerStub("session-manager")
	require.NoError(t, stub.RegisterMetrics(registry))

	stub.track(10, 5)

	names := gathered(t, registry)
	assert.True(t, names["gateway_tracker_stub_events_buffered_total"])
	assert.True(t, names["gateway_tracker_stub_sessions_active"])
}

func TestMetricsIntegration_SameComponentTwice(t *testing.T) {
	registry := NewMetricsRegistry()

	first := newTrackerStub("session-manager")
	second := newTrackerStub("session-manager")

	require.NoError(t, first.RegisterMetrics(registry))

	err := second.RegisterMetrics(registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMetricsIntegration_CoreAndComponentSideBySide(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	stub := newTrackerStub("separation-test")
	require.NoError(t, stub.RegisterMetrics(registry))

	core.RecordServiceStatus("separation-test", 2)
	core.RecordMessageReceived("separation-test", "notification")
	stub.track(5, 3)

	names := gathered(t, registry)

	assert.True(t, names["gateway_service_status"])
	assert.True(t, names["gateway_messages_received_total"])
	assert.True(t, names["gateway_tracker_stub_events_buffered_total"])
	assert.True(t, names["gateway_tracker_stub_sessions_active"])

	// Real components register themselves later.
	assert.False(t, names["gateway_session_active"])
	assert.False(t, names["gateway_duplex_streams_active"])
}

func TestMetricsIntegration_Unregistration(t *testing.T) {
	registry := NewMetricsRegistry()

	stub := newTrackerStub("unregister-test")
	require.NoError(t, stub.RegisterMetrics(registry))
	stub.track(1, 1)

	require.True(t, gathered(t, registry)["gateway_tracker_stub_events_buffered_total"])

	assert.True(t, registry.Unregister("unregister-test", "events_buffered_total"))

	names := gathered(t, registry)
	assert.False(t, names["gateway_tracker_stub_events_buffered_total"])
	assert.True(t, names["gateway_tracker_stub_sessions_active"],
		"the component's other metrics remain")
}

func TestMetricsIntegration_NameConflictAcrossComponents(t *testing.T) {
	registry := NewMetricsRegistry()

	// Distinct component names, identical Prometheus metric names. The
	// ownership map allows it, Prometheus does not.
	first := newTrackerStub("notify-dispatcher")
	second := newTrackerStub("sse-gateway")

	require.NoError(t, first.RegisterMetrics(registry))

	err := second.RegisterMetrics(registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}
