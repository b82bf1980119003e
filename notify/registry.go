package notify

import (
	"sync"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// PushConn is one open push connection bound to a session. Implementations
// must make Send safe for concurrent use; the SSE transport serializes sends
// through a per-connection channel.
type PushConn interface {
	// ID identifies the connection within its session
	ID() string

	// Send delivers one event to the client
	Send(ev session.Event) error

	// Close tears the connection down
	Close() error
}

// connSet holds the open connections of one session. Per-session locking
// keeps unrelated sessions' broadcasts from contending.
type connSet struct {
	mu    sync.RWMutex
	conns map[string]PushConn
}

func (cs *connSet) add(conn PushConn) {
	cs.mu.Lock()
	cs.conns[conn.ID()] = conn
	cs.mu.Unlock()
}

func (cs *connSet) remove(connID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.conns[connID]; !ok {
		return false
	}
	delete(cs.conns, connID)
	return true
}

func (cs *connSet) snapshot() []PushConn {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	conns := make([]PushConn, 0, len(cs.conns))
	for _, conn := range cs.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (cs *connSet) size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.conns)
}

// Registry tracks the open push connections of every session and broadcasts
// events to them in parallel. Connections are keyed by identity so removal
// is O(1).
type Registry struct {
	sessions sync.Map // sessionID -> *connSet

	metrics *Metrics
}

// NewRegistry creates a push connection registry. Metrics are shared with
// the dispatcher and may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{metrics: metrics}
}

// Register adds an open push connection for a session.
func (r *Registry) Register(sessionID string, conn PushConn) {
	val, _ := r.sessions.LoadOrStore(sessionID, &connSet{conns: make(map[string]PushConn)})
	val.(*connSet).add(conn)

	if r.metrics != nil {
		r.metrics.connectionsActive.Inc()
	}
}

// Unregister removes a connection. Called on close or write failure;
// idempotent for already-removed connections.
func (r *Registry) Unregister(sessionID, connID string) {
	val, ok := r.sessions.Load(sessionID)
	if !ok {
		return
	}

	if val.(*connSet).remove(connID) && r.metrics != nil {
		r.metrics.connectionsActive.Dec()
	}
}

// Broadcast sends the event to every open connection of the session in
// parallel. A failing connection is closed and unregistered without
// blocking delivery to siblings. With zero open connections this is a no-op;
// the event stays in the session buffer for a future resume.
func (r *Registry) Broadcast(sessionID string, ev session.Event) {
	val, ok := r.sessions.Load(sessionID)
	if !ok {
		return
	}

	conns := val.(*connSet).snapshot()
	if len(conns) == 0 {
		return
	}

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(len(conns))
	for _, conn := range conns {
		go func(conn PushConn) {
			defer wg.Done()
			if err := conn.Send(ev); err != nil {
				r.Unregister(sessionID, conn.ID())
				_ = conn.Close()
				if r.metrics != nil {
					r.metrics.deliveryFailures.Inc()
				}
				return
			}
			if r.metrics != nil {
				r.metrics.deliveries.Inc()
			}
		}(conn)
	}
	wg.Wait()

	if r.metrics != nil {
		r.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}

// CloseSession closes and removes every connection of a session. Invoked
// when the owning session is terminated or swept.
func (r *Registry) CloseSession(sessionID string) {
	val, ok := r.sessions.LoadAndDelete(sessionID)
	if !ok {
		return
	}

	for _, conn := range val.(*connSet).snapshot() {
		_ = conn.Close()
		if r.metrics != nil {
			r.metrics.connectionsActive.Dec()
		}
	}
}

// ConnectionCount returns the number of open connections for a session.
func (r *Registry) ConnectionCount(sessionID string) int {
	val, ok := r.sessions.Load(sessionID)
	if !ok {
		return 0
	}
	return val.(*connSet).size()
}

// TotalConnections returns the number of open connections across all
// sessions.
func (r *Registry) TotalConnections() int {
	total := 0
	r.sessions.Range(func(_, val any) bool {
		total += val.(*connSet).size()
		return true
	})
	return total
}
