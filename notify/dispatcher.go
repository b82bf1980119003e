package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/pkg/worker"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// delivery is one broadcast job handed to the fan-out pool
type delivery struct {
	sessionID string
	event     session.Event
}

// DispatcherConfig holds all configuration needed to construct a Dispatcher
type DispatcherConfig struct {
	Manager  *session.Manager
	Registry *Registry
	Logger   *slog.Logger

	// Fan-out sizing: Workers shards, each with its own queue of
	// QueueSize. Defaults applied for zero values.
	Workers   int
	QueueSize int

	MetricsRegistry *metric.MetricsRegistry
	Metrics         *Metrics // shared with the registry; created if nil and a registry is set
}

// Dispatcher delivers notifications to sessions. For each target session it
// assigns an event id, appends the event to the session buffer, and
// broadcasts to open push connections through a sharded worker pool so one
// slow session cannot stall producers or siblings. Deliveries are sharded
// by session id, so a session's events reach its connections in id order.
type Dispatcher struct {
	manager  *session.Manager
	registry *Registry
	logger   *slog.Logger
	pool     *worker.ShardedPool[delivery]
	metrics  *Metrics

	// Lifecycle management
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	dispatched atomic.Int64
	errorCount atomic.Int64
	lastActive atomic.Value // stores time.Time
}

// Ensure Dispatcher implements all required interfaces
var _ component.Discoverable = (*Dispatcher)(nil)
var _ component.LifecycleComponent = (*Dispatcher)(nil)

// NewDispatcher creates a notification dispatcher from config.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.MetricsRegistry)
	}

	d := &Dispatcher{
		manager:   cfg.Manager,
		registry:  cfg.Registry,
		logger:    cfg.Logger.With("component", "notify-dispatcher"),
		metrics:   cfg.Metrics,
		startTime: time.Now(),
	}
	d.lastActive.Store(time.Now())

	d.pool = worker.NewShardedPool(cfg.Workers, cfg.QueueSize, d.deliver,
		worker.WithShardedMetricsRegistry[delivery](cfg.MetricsRegistry, "gateway_notify_fanout"))

	return d
}

// Dispatch delivers a notification. With an empty targetURI every session is
// a target; with a resource uri only sessions subscribed to exactly that uri
// receive it. Events are recorded into session buffers synchronously (so a
// replay immediately after Dispatch sees them) and broadcast asynchronously.
// Per-session failures are logged and never abort delivery to siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification, targetURI string) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		return errors.WrapInvalid(errors.ErrNotStarted, "Dispatcher", "Dispatch",
			"dispatcher not started")
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Dispatcher", "Dispatch", "context cancelled")
	}

	frame, err := n.Frame()
	if err != nil {
		d.errorCount.Add(1)
		return err
	}

	if d.metrics != nil {
		d.metrics.dispatches.WithLabelValues(n.Method).Inc()
	}

	targeted := 0
	for _, sess := range d.manager.Sessions() {
		if targetURI != "" && !sess.IsSubscribed(targetURI) {
			if d.metrics != nil {
				d.metrics.filteredOut.Inc()
			}
			continue
		}

		ev, err := d.manager.RecordEvent(sess, "message", frame)
		if err != nil {
			// Buffering failed for this session only; siblings still get theirs
			d.errorCount.Add(1)
			d.logger.Warn("failed to buffer notification",
				"session_id", sess.ID(), "method", n.Method, "error", err)
			continue
		}
		targeted++

		if d.metrics != nil {
			d.metrics.sessionsTargeted.Inc()
		}

		// Sharding by session id keeps one session's deliveries on one
		// worker, preserving event id order on the wire
		if err := d.pool.Submit(sess.ID(), delivery{sessionID: sess.ID(), event: ev}); err != nil {
			// Queue full: the event is already buffered, so the session can
			// still replay it on its next resume
			d.errorCount.Add(1)
			d.logger.Warn("fan-out queue full, dropping live delivery",
				"session_id", sess.ID(), "event_id", ev.ID)
		}
	}

	d.dispatched.Add(1)
	d.lastActive.Store(time.Now())
	d.logger.Debug("dispatched notification",
		"method", n.Method, "target_uri", targetURI, "sessions", targeted)
	return nil
}

// deliver is the pool processor: broadcast one event to one session's
// connections.
func (d *Dispatcher) deliver(_ context.Context, job delivery) error {
	d.registry.Broadcast(job.sessionID, job.event)
	return nil
}

// Meta returns the component metadata
func (d *Dispatcher) Meta() component.Metadata {
	return component.Metadata{
		Name:        "notify-dispatcher",
		Type:        "notify",
		Description: "Assigns event ids, buffers notifications and fans out to push connections",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (d *Dispatcher) Health() component.HealthStatus {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(d.errorCount.Load()),
		Uptime:     time.Since(d.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (d *Dispatcher) DataFlow() component.FlowMetrics {
	dispatched := d.dispatched.Load()

	var perSecond float64
	if uptime := time.Since(d.startTime).Seconds(); uptime > 0 {
		perSecond = float64(dispatched) / uptime
	}

	var errorRate float64
	if dispatched > 0 {
		errorRate = float64(d.errorCount.Load()) / float64(dispatched)
	}

	lastActive, _ := d.lastActive.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActive,
	}
}

// Initialize validates dispatcher dependencies
func (d *Dispatcher) Initialize() error {
	if d.manager == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Dispatcher", "Initialize",
			"session manager is required")
	}
	if d.registry == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Dispatcher", "Initialize",
			"stream registry is required")
	}
	return nil
}

// Start launches the fan-out worker pool
func (d *Dispatcher) Start(ctx context.Context) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	if err := d.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Dispatcher", "Start", "start fan-out pool")
	}

	d.running = true
	d.startTime = time.Now()
	d.logger.Info("notification dispatcher started")
	return nil
}

// Stop drains the fan-out pool
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	if err := d.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "Dispatcher", "Stop",
			fmt.Sprintf("stop fan-out pool within %v", timeout))
	}
	return nil
}
