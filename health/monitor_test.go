package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitor(t *testing.T) {
	monitor := NewMonitor()

	require.NotNil(t, monitor)
	assert.Equal(t, 0, monitor.Count())
}

func TestMonitor_Update(t *testing.T) {
	monitor := NewMonitor()

	monitor.Update("session-manager", Status{
		Status:  "healthy",
		Message: "tracking 2 sessions",
	})

	retrieved, exists := monitor.Get("session-manager")
	require.True(t, exists)
	assert.Equal(t, "session-manager", retrieved.Component)
	assert.Equal(t, "healthy", retrieved.Status)
	assert.False(t, retrieved.Timestamp.IsZero(), "Update should stamp missing timestamps")
}

func TestMonitor_UpdateNormalizesComponentName(t *testing.T) {
	monitor := NewMonitor()

	// The key wins over whatever name the status carries.
	monitor.Update("duplex-engine", Status{
		Component: "wrong-name",
		Status:    "healthy",
	})

	retrieved, exists := monitor.Get("duplex-engine")
	require.True(t, exists)
	assert.Equal(t, "duplex-engine", retrieved.Component)
}

func TestMonitor_ConvenienceMethods(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("session-manager", "running")
	healthyStatus, exists := monitor.Get("session-manager")
	require.True(t, exists)
	assert.True(t, healthyStatus.IsHealthy())
	assert.Equal(t, "running", healthyStatus.Message)

	monitor.UpdateUnhealthy("nats", "connection refused")
	unhealthyStatus, exists := monitor.Get("nats")
	require.True(t, exists)
	assert.True(t, unhealthyStatus.IsUnhealthy())
	assert.Equal(t, "connection refused", unhealthyStatus.Message)

	monitor.UpdateDegraded("sse-gateway", "slow consumers evicted")
	degradedStatus, exists := monitor.Get("sse-gateway")
	require.True(t, exists)
	assert.True(t, degradedStatus.IsDegraded())
}

func TestMonitor_Get(t *testing.T) {
	monitor := NewMonitor()

	_, exists := monitor.Get("never-registered")
	assert.False(t, exists)

	monitor.UpdateHealthy("http-gateway", "listening")
	status, exists := monitor.Get("http-gateway")
	require.True(t, exists)
	assert.Equal(t, "http-gateway", status.Component)
}

func TestMonitor_GetAll(t *testing.T) {
	monitor := NewMonitor()

	assert.Empty(t, monitor.GetAll())

	monitor.UpdateHealthy("session-manager", "ok")
	monitor.UpdateUnhealthy("nats", "down")
	monitor.UpdateDegraded("sse-gateway", "slow")

	all := monitor.GetAll()
	require.Len(t, all, 3)
	for _, name := range []string{"session-manager", "nats", "sse-gateway"} {
		assert.Contains(t, all, name)
	}

	// Snapshot, not a live view.
	all["session-manager"] = Status{Component: "mutated"}
	original, _ := monitor.Get("session-manager")
	assert.Equal(t, "session-manager", original.Component)
}

func TestMonitor_Remove(t *testing.T) {
	monitor := NewMonitor()

	monitor.Remove("never-registered")

	monitor.UpdateHealthy("notify-dispatcher", "ok")
	require.Equal(t, 1, monitor.Count())

	monitor.Remove("notify-dispatcher")
	assert.Equal(t, 0, monitor.Count())

	_, exists := monitor.Get("notify-dispatcher")
	assert.False(t, exists)
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()

	aggregate := monitor.AggregateHealth("gateway")
	assert.True(t, aggregate.IsHealthy(), "empty table aggregates healthy")
	assert.Equal(t, "gateway", aggregate.Component)

	monitor.UpdateHealthy("session-manager", "ok")
	monitor.UpdateHealthy("notify-dispatcher", "ok")
	assert.True(t, monitor.AggregateHealth("gateway").IsHealthy())

	monitor.UpdateUnhealthy("nats", "connection lost")
	assert.True(t, monitor.AggregateHealth("gateway").IsUnhealthy())

	monitor.Remove("nats")
	monitor.UpdateDegraded("sse-gateway", "buffer pressure")
	assert.True(t, monitor.AggregateHealth("gateway").IsDegraded())
}

func TestMonitor_ListComponents(t *testing.T) {
	monitor := NewMonitor()

	assert.Empty(t, monitor.ListComponents())

	monitor.UpdateHealthy("session-manager", "ok")
	monitor.UpdateUnhealthy("nats", "down")

	components := monitor.ListComponents()
	assert.ElementsMatch(t, []string{"session-manager", "nats"}, components)
}

func TestMonitor_Count(t *testing.T) {
	monitor := NewMonitor()

	assert.Equal(t, 0, monitor.Count())

	monitor.UpdateHealthy("session-manager", "ok")
	assert.Equal(t, 1, monitor.Count())

	monitor.UpdateHealthy("duplex-engine", "ok")
	assert.Equal(t, 2, monitor.Count())

	monitor.Remove("session-manager")
	assert.Equal(t, 1, monitor.Count())
}

func TestMonitor_Clear(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("session-manager", "ok")
	monitor.UpdateUnhealthy("nats", "down")
	monitor.UpdateDegraded("sse-gateway", "slow")
	require.Equal(t, 3, monitor.Count())

	monitor.Clear()

	assert.Equal(t, 0, monitor.Count())
	assert.Empty(t, monitor.GetAll())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()
	numGoroutines := 10
	opsPerGoroutine := 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				switch j % 4 {
				case 0:
					monitor.UpdateHealthy("duplex-engine", "ok")
				case 1:
					monitor.UpdateUnhealthy("duplex-engine", "upgrade failed")
				case 2:
					_, _ = monitor.Get("duplex-engine")
				case 3:
					_ = monitor.GetAll()
				}
			}
		}()
	}

	wg.Wait()

	monitor.UpdateHealthy("session-manager", "still serving")
	status, exists := monitor.Get("session-manager")
	require.True(t, exists)
	assert.Equal(t, "session-manager", status.Component)
}

func TestMonitor_ConcurrentAggregation(t *testing.T) {
	monitor := NewMonitor()
	numGoroutines := 5

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		if i == 0 {
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = monitor.AggregateHealth("gateway")
					time.Sleep(time.Microsecond)
				}
			}()
			continue
		}
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%2 == 0 {
					monitor.UpdateHealthy("notify-dispatcher", "ok")
				} else {
					monitor.Remove("notify-dispatcher")
				}
				time.Sleep(time.Microsecond)
			}
		}()
	}

	wg.Wait()

	aggregate := monitor.AggregateHealth("gateway")
	assert.Equal(t, "gateway", aggregate.Component)
}
