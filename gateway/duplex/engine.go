package duplex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// Defaults applied when EngineConfig fields are zero
const (
	DefaultStreamIdleTimeout = 2 * time.Minute
	DefaultSweepInterval     = 15 * time.Second
	DefaultMaxFrameSize      = 1024 * 1024
	DefaultPingInterval      = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// RelayFunc consumes an inbound stream. Relays run on their own goroutine
// and may open server-side streams on the same connection.
type RelayFunc func(conn *Conn, stream *StreamContext)

// EngineConfig holds all configuration needed to construct an Engine
type EngineConfig struct {
	StreamIdleTimeout time.Duration // Idle streams are force-errored past this
	SweepInterval     time.Duration // Idle scan cadence
	MaxFrameSize      int64         // Read limit per websocket message
	PingInterval      time.Duration // Keep-alive ping cadence
	WriteTimeout      time.Duration

	// Sessions gates upgrades on a valid session token. Optional; without a
	// manager the endpoint accepts anonymous connections.
	Sessions *session.Manager

	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Engine is the duplex websocket component: it upgrades connections,
// multiplexes streams over them, sweeps idle streams and acknowledges
// uploads. Relays registered per method name consume inbound streams.
type Engine struct {
	config EngineConfig
	logger *slog.Logger

	upgrader websocket.Upgrader

	conns     sync.Map // conn id -> *Conn
	connCount atomic.Int64

	relaysMu sync.RWMutex
	relays   map[string]RelayFunc

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	// Activity tracking for DataFlow
	streamsOpened  atomic.Int64
	bytesReceived  atomic.Int64
	framesRejected atomic.Int64
	errorCount     atomic.Int64
	lastActivity   atomic.Value // stores time.Time

	metrics *Metrics
}

var _ component.Discoverable = (*Engine)(nil)
var _ component.LifecycleComponent = (*Engine)(nil)
var _ http.Handler = (*Engine)(nil)

// NewEngine creates the duplex engine from config, applying defaults for
// zero values.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.StreamIdleTimeout <= 0 {
		cfg.StreamIdleTimeout = DefaultStreamIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		config: cfg,
		logger: cfg.Logger.With("component", "duplex-engine"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the HTTP gateway's CORS layer
			CheckOrigin: func(*http.Request) bool { return true },
		},
		relays:    make(map[string]RelayFunc),
		startTime: time.Now(),
		metrics:   newMetrics(cfg.MetricsRegistry),
	}
	e.lastActivity.Store(time.Now())
	return e
}

// RegisterRelay binds a relay to a stream method name. Inbound streams
// whose start meta carries the method are handed to the relay.
func (e *Engine) RegisterRelay(method string, fn RelayFunc) error {
	if method == "" || fn == nil {
		return errors.WrapInvalid(errors.ErrInvalidParams, "Engine", "RegisterRelay",
			"method and relay func are required")
	}

	e.relaysMu.Lock()
	defer e.relaysMu.Unlock()
	if _, exists := e.relays[method]; exists {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "RegisterRelay",
			fmt.Sprintf("relay for %s already registered", method))
	}
	e.relays[method] = fn
	return nil
}

func (e *Engine) relay(method string) RelayFunc {
	if method == "" {
		return nil
	}
	e.relaysMu.RLock()
	defer e.relaysMu.RUnlock()
	return e.relays[method]
}

// ServeHTTP upgrades one duplex connection.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		http.Error(w, "duplex engine not running", http.StatusServiceUnavailable)
		return
	}

	sessionID := ""
	if e.config.Sessions != nil {
		token := r.Header.Get(gateway.HeaderSessionID)
		if token == "" {
			token = r.URL.Query().Get("session")
		}
		if token == "" {
			http.Error(w, "Mcp-Session-Id required", http.StatusBadRequest)
			return
		}
		sess, err := e.config.Sessions.Validate(token)
		if err != nil {
			http.Error(w, "session expired or unknown", http.StatusNotFound)
			return
		}
		sessionID = sess.ID()
	}

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.errorCount.Add(1)
		e.logger.Debug("upgrade failed", "error", err)
		return
	}

	conn := newConn(e, ws, sessionID)
	e.conns.Store(conn.id, conn)
	e.connCount.Add(1)
	e.lastActivity.Store(time.Now())
	if e.metrics != nil {
		e.metrics.connectionsActive.Inc()
	}

	e.logger.Debug("duplex connection opened", "conn_id", conn.id, "session_id", sessionID)

	go conn.writeLoop()
	go conn.readLoop()
}

// removeConn drops a closed connection from the table.
func (e *Engine) removeConn(c *Conn) {
	if _, loaded := e.conns.LoadAndDelete(c.id); !loaded {
		return
	}
	e.connCount.Add(-1)
	if e.metrics != nil {
		e.metrics.connectionsActive.Dec()
	}
}

// ConnectionCount returns the number of open connections.
func (e *Engine) ConnectionCount() int {
	return int(e.connCount.Load())
}

// Initialize validates the engine configuration
func (e *Engine) Initialize() error {
	if e.config.StreamIdleTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "Initialize",
			"stream idle timeout must be positive")
	}
	return nil
}

// Start launches the idle stream sweeper
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	e.shutdown = make(chan struct{})
	e.wg = &sync.WaitGroup{}
	e.running = true
	e.startTime = time.Now()

	e.wg.Add(1)
	go e.runSweeper(ctx)

	e.logger.Info("duplex engine started",
		"idle_timeout", e.config.StreamIdleTimeout, "max_frame_size", e.config.MaxFrameSize)
	return nil
}

// runSweeper force-errors idle streams until shutdown
func (e *Engine) runSweeper(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.SweepIdleStreams()
		}
	}
}

// SweepIdleStreams aborts every stream idle past the configured timeout
// and returns how many were aborted.
func (e *Engine) SweepIdleStreams() int {
	swept := 0
	e.conns.Range(func(_, val any) bool {
		conn := val.(*Conn)
		for _, stream := range conn.snapshotStreams() {
			if stream.IdleFor() > e.config.StreamIdleTimeout {
				conn.logger.Warn("aborting idle stream",
					"stream_id", stream.ID(), "idle", stream.IdleFor().Round(time.Second))
				conn.SendError(stream, 0, "stream idle timeout")
				swept++
			}
		}
		return true
	})
	return swept
}

// Stop closes every connection and halts the sweeper
func (e *Engine) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false

	close(e.shutdown)
	wg := e.wg
	e.mu.Unlock()

	e.conns.Range(func(_, val any) bool {
		val.(*Conn).teardown()
		return true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		e.logger.Warn("duplex sweeper did not exit within timeout")
	}

	e.mu.Lock()
	e.shutdown = nil
	e.wg = nil
	e.mu.Unlock()

	return nil
}

func (e *Engine) noteStreamOpened() {
	e.streamsOpened.Add(1)
	e.lastActivity.Store(time.Now())
	if e.metrics != nil {
		e.metrics.streamsOpened.Inc()
		e.metrics.streamsActive.Inc()
	}
}

func (e *Engine) noteStreamCompleted() {
	if e.metrics != nil {
		e.metrics.streamsCompleted.Inc()
	}
}

func (e *Engine) noteStreamErrored() {
	e.errorCount.Add(1)
	if e.metrics != nil {
		e.metrics.streamsErrored.Inc()
	}
}

func (e *Engine) noteFrameRejected() {
	e.framesRejected.Add(1)
	if e.metrics != nil {
		e.metrics.framesRejected.Inc()
	}
}

func (e *Engine) noteBytes(n int) {
	e.bytesReceived.Add(int64(n))
	e.lastActivity.Store(time.Now())
	if e.metrics != nil {
		e.metrics.bytesReceived.Add(float64(n))
	}
}

func (e *Engine) noteActivity() {
	e.lastActivity.Store(time.Now())
}

// Meta returns the component metadata
func (e *Engine) Meta() component.Metadata {
	return component.Metadata{
		Name:        "duplex-engine",
		Type:        "transport",
		Description: "Bidirectional websocket streaming with per-stream half-close",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (e *Engine) Health() component.HealthStatus {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(e.errorCount.Load()),
		Uptime:     time.Since(e.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (e *Engine) DataFlow() component.FlowMetrics {
	opened := e.streamsOpened.Load()

	var perSecond, bytesPerSecond float64
	if uptime := time.Since(e.startTime).Seconds(); uptime > 0 {
		perSecond = float64(opened) / uptime
		bytesPerSecond = float64(e.bytesReceived.Load()) / uptime
	}

	var errorRate float64
	if opened > 0 {
		errorRate = float64(e.errorCount.Load()) / float64(opened)
	}

	lastActivity, _ := e.lastActivity.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}
