package session

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
)

// Defaults applied when ManagerConfig fields are zero
const (
	DefaultTTL            = 30 * time.Minute
	DefaultSweepInterval  = time.Minute
	DefaultBufferCapacity = 100
)

// ManagerConfig holds all configuration needed to construct a Manager
type ManagerConfig struct {
	TTL             time.Duration           // Sliding idle expiry window
	SweepInterval   time.Duration           // Background expiry sweep cadence
	BufferCapacity  int                     // Per-session replay buffer capacity
	Logger          *slog.Logger            // Optional structured logger
	MetricsRegistry *metric.MetricsRegistry // Optional Prometheus metrics registry
}

// Manager owns the session table: creation, validation, sliding expiry and
// termination. A background sweeper removes idle sessions while the manager
// is started. Safe for concurrent use from request handlers and background
// notification producers.
type Manager struct {
	ttl            time.Duration
	sweepInterval  time.Duration
	bufferCapacity int
	logger         *slog.Logger

	// sessions maps token -> *Session; sync.Map keeps unrelated sessions'
	// traffic from contending on one lock
	sessions sync.Map
	count    atomic.Int64

	// onRemove is invoked after a session is terminated or swept so the
	// stream registry can drop its push connections
	onRemove   func(sessionID string)
	onRemoveMu sync.RWMutex

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	// Activity tracking for DataFlow
	eventsRecorded atomic.Int64
	errorCount     atomic.Int64
	lastActivity   atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Manager implements all required interfaces
var _ component.Discoverable = (*Manager)(nil)
var _ component.LifecycleComponent = (*Manager)(nil)

// NewManager creates a session manager from config, applying defaults for
// zero values.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		ttl:            cfg.TTL,
		sweepInterval:  cfg.SweepInterval,
		bufferCapacity: cfg.BufferCapacity,
		logger:         cfg.Logger.With("component", "session-manager"),
		startTime:      time.Now(),
		metrics:        newMetrics(cfg.MetricsRegistry),
	}
	m.lastActivity.Store(time.Now())
	return m
}

// TTL returns the sliding idle expiry window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// OnRemove registers a callback invoked with the session id whenever a
// session is terminated or swept.
func (m *Manager) OnRemove(fn func(sessionID string)) {
	m.onRemoveMu.Lock()
	m.onRemove = fn
	m.onRemoveMu.Unlock()
}

// CreateOrResume mints a fresh session when token is empty, or validates and
// refreshes an existing one. Unknown or expired tokens fail with
// ErrSessionExpired; the client must re-initialize for a fresh token.
func (m *Manager) CreateOrResume(token string) (*Session, bool, error) {
	if token == "" {
		sess, err := m.create()
		if err != nil {
			return nil, false, err
		}
		return sess, true, nil
	}

	sess, err := m.Validate(token)
	if err != nil {
		return nil, false, err
	}

	if m.metrics != nil {
		m.metrics.sessionsResumed.Inc()
	}
	return sess, false, nil
}

// create mints a new session with an unguessable token.
func (m *Manager) create() (*Session, error) {
	token, err := newToken()
	if err != nil {
		m.errorCount.Add(1)
		return nil, err
	}

	sess, err := newSession(token, m.bufferCapacity)
	if err != nil {
		m.errorCount.Add(1)
		return nil, err
	}

	m.sessions.Store(token, sess)
	m.count.Add(1)
	m.lastActivity.Store(time.Now())

	if m.metrics != nil {
		m.metrics.sessionsCreated.Inc()
		m.metrics.sessionsActive.Set(float64(m.count.Load()))
	}

	m.logger.Debug("session created", "session_id", token)
	return sess, nil
}

// Validate looks up a token and refreshes its sliding expiry. An unknown
// token, or one idle past the TTL, fails with ErrSessionExpired. Expired
// sessions found on access are removed immediately rather than waiting for
// the sweep.
func (m *Manager) Validate(token string) (*Session, error) {
	val, ok := m.sessions.Load(token)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrSessionExpired, "Manager", "Validate",
			"unknown session token")
	}

	sess := val.(*Session)
	if sess.IdleFor() > m.ttl {
		m.remove(token, sess, "expired")
		if m.metrics != nil {
			m.metrics.sessionsExpired.Inc()
		}
		return nil, errors.WrapInvalid(errors.ErrSessionExpired, "Manager", "Validate",
			fmt.Sprintf("session idle for %v (limit %v)", sess.IdleFor().Round(time.Second), m.ttl))
	}

	sess.Touch()
	return sess, nil
}

// Terminate removes a session immediately. Idempotent: terminating an
// unknown or already-removed token is not an error.
func (m *Manager) Terminate(token string) {
	val, ok := m.sessions.Load(token)
	if !ok {
		return
	}

	m.remove(token, val.(*Session), "terminated")
	if m.metrics != nil {
		m.metrics.sessionsTerminated.Inc()
	}
}

// remove deletes a session, clears its subscriptions, and notifies the
// removal hook. LoadAndDelete makes concurrent removals race-free.
func (m *Manager) remove(token string, sess *Session, reason string) {
	if _, loaded := m.sessions.LoadAndDelete(token); !loaded {
		return
	}

	m.count.Add(-1)
	sess.close()

	if m.metrics != nil {
		m.metrics.sessionsActive.Set(float64(m.count.Load()))
	}

	m.onRemoveMu.RLock()
	onRemove := m.onRemove
	m.onRemoveMu.RUnlock()
	if onRemove != nil {
		onRemove(token)
	}

	m.logger.Debug("session removed", "session_id", token, "reason", reason)
}

// SweepExpired removes every session idle past the TTL and returns how many
// were removed.
func (m *Manager) SweepExpired() int {
	start := time.Now()
	removed := 0

	m.sessions.Range(func(key, val any) bool {
		sess := val.(*Session)
		if sess.IdleFor() > m.ttl {
			m.remove(key.(string), sess, "expired")
			removed++
			if m.metrics != nil {
				m.metrics.sessionsExpired.Inc()
			}
		}
		return true
	})

	if m.metrics != nil {
		m.metrics.sweepDuration.Observe(time.Since(start).Seconds())
	}

	if removed > 0 {
		m.logger.Info("swept expired sessions", "removed", removed, "remaining", m.count.Load())
	}
	return removed
}

// RecordEvent assigns the next event id for the session, buffers the event,
// and returns it. Used by the notification dispatcher.
func (m *Manager) RecordEvent(sess *Session, eventType string, data []byte) (Event, error) {
	ev, err := sess.Record(eventType, data)
	if err != nil {
		m.errorCount.Add(1)
		return Event{}, err
	}

	m.eventsRecorded.Add(1)
	m.lastActivity.Store(time.Now())
	if m.metrics != nil {
		m.metrics.eventsBuffered.Inc()
	}
	return ev, nil
}

// Replay returns the session's buffered events after lastSeenID and records
// the replay volume.
func (m *Manager) Replay(sess *Session, lastSeenID uint64) []Event {
	events := sess.ReplayAfter(lastSeenID)
	if m.metrics != nil && len(events) > 0 {
		m.metrics.eventsReplayed.Add(float64(len(events)))
	}
	return events
}

// Sessions returns a snapshot of all live sessions.
func (m *Manager) Sessions() []*Session {
	sessions := make([]*Session, 0, m.count.Load())
	m.sessions.Range(func(_, val any) bool {
		sessions = append(sessions, val.(*Session))
		return true
	})
	return sessions
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return int(m.count.Load())
}

// Meta returns the component metadata
func (m *Manager) Meta() component.Metadata {
	return component.Metadata{
		Name:        "session-manager",
		Type:        "session",
		Description: fmt.Sprintf("Session table with %v sliding expiry and %d-event replay buffers", m.ttl, m.bufferCapacity),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (m *Manager) Health() component.HealthStatus {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(m.errorCount.Load()),
		Uptime:     time.Since(m.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (m *Manager) DataFlow() component.FlowMetrics {
	events := m.eventsRecorded.Load()

	var perSecond float64
	if uptime := time.Since(m.startTime).Seconds(); uptime > 0 {
		perSecond = float64(events) / uptime
	}

	var errorRate float64
	if events > 0 {
		errorRate = float64(m.errorCount.Load()) / float64(events)
	}

	lastActivity, _ := m.lastActivity.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the manager configuration
func (m *Manager) Initialize() error {
	if m.ttl <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Manager", "Initialize",
			"session TTL must be positive")
	}
	if m.bufferCapacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Manager", "Initialize",
			"buffer capacity must be positive")
	}
	return nil
}

// Start launches the background expiry sweeper
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	m.shutdown = make(chan struct{})
	m.wg = &sync.WaitGroup{}
	m.running = true
	m.startTime = time.Now()

	m.wg.Add(1)
	go m.runSweeper(ctx)

	m.logger.Info("session manager started",
		"ttl", m.ttl, "sweep_interval", m.sweepInterval, "buffer_capacity", m.bufferCapacity)
	return nil
}

// runSweeper periodically removes idle sessions until shutdown
func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.SweepExpired()
		}
	}
}

// Stop halts the sweeper and releases all session state
func (m *Manager) Stop(timeout time.Duration) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false

	close(m.shutdown)
	wg := m.wg
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("session sweeper did not exit within timeout")
	}

	// Release all session buffers
	m.sessions.Range(func(key, val any) bool {
		m.remove(key.(string), val.(*Session), "shutdown")
		return true
	})

	m.mu.Lock()
	m.shutdown = nil
	m.wg = nil
	m.mu.Unlock()

	return nil
}
