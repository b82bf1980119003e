// Package sse implements the gateway's server-sent-events push transport.
// A GET on the protocol endpoint opens a long-lived event stream for one
// session: buffered events after the client's Last-Event-ID marker are
// replayed first, then live notifications flow as they are dispatched.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/notify"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// Defaults applied when HandlerConfig fields are zero
const (
	DefaultHeartbeat   = 15 * time.Second
	DefaultRetryMillis = 3000
	DefaultSendBuffer  = 32
)

// HandlerConfig holds all configuration needed to construct a Handler
type HandlerConfig struct {
	Sessions    *session.Manager
	Registry    *notify.Registry
	Heartbeat   time.Duration // Comment keep-alive cadence
	RetryMillis int           // Client reconnect delay advertised on connect
	SendBuffer  int           // Per-connection live event queue depth
	Logger      *slog.Logger
}

// Handler serves the SSE stream. Each request registers a push connection
// with the stream registry; a connection whose queue overflows is treated
// as failed and evicted by the registry.
type Handler struct {
	sessions    *session.Manager
	registry    *notify.Registry
	heartbeat   time.Duration
	retryMillis int
	sendBuffer  int
	logger      *slog.Logger

	startTime time.Time

	// Activity tracking for DataFlow
	connectionsOpened atomic.Int64
	connectionsActive atomic.Int64
	eventsSent        atomic.Int64
	errorCount        atomic.Int64
	lastActivity      atomic.Value // stores time.Time
}

var _ http.Handler = (*Handler)(nil)
var _ component.Discoverable = (*Handler)(nil)

// NewHandler creates the SSE transport from config, applying defaults for
// zero values.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.RetryMillis <= 0 {
		cfg.RetryMillis = DefaultRetryMillis
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Handler{
		sessions:    cfg.Sessions,
		registry:    cfg.Registry,
		heartbeat:   cfg.Heartbeat,
		retryMillis: cfg.RetryMillis,
		sendBuffer:  cfg.SendBuffer,
		logger:      cfg.Logger.With("component", "sse-gateway"),
		startTime:   time.Now(),
	}
	h.lastActivity.Store(time.Now())
	return h
}

// ServeHTTP opens the event stream for one validated session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		http.Error(w, "Mcp-Session-Id required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Validate(token)
	if err != nil {
		h.errorCount.Add(1)
		http.Error(w, "session expired or unknown", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorCount.Add(1)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(gateway.HeaderSessionID, sess.ID())
	w.WriteHeader(http.StatusOK)

	// Advertise the reconnect delay before any event
	fmt.Fprintf(w, "retry: %d\n\n", h.retryMillis)
	flusher.Flush()

	conn := newConn("sse-"+uuid.NewString(), h.sendBuffer)

	// Register before replaying so no event dispatched during the replay is
	// lost; duplicates across the two paths are dropped by the id watermark
	h.registry.Register(sess.ID(), conn)
	defer h.registry.Unregister(sess.ID(), conn.ID())

	h.connectionsOpened.Add(1)
	h.connectionsActive.Add(1)
	defer h.connectionsActive.Add(-1)
	h.lastActivity.Store(time.Now())

	lastSeenID := lastEventID(r)
	var watermark uint64
	for _, ev := range h.sessions.Replay(sess, lastSeenID) {
		if err := h.writeEvent(w, ev); err != nil {
			h.errorCount.Add(1)
			return
		}
		watermark = ev.ID
	}
	flusher.Flush()

	h.logger.Debug("sse stream opened",
		"session_id", sess.ID(), "conn_id", conn.ID(), "last_event_id", lastSeenID)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.done:
			return
		case ev := <-conn.send:
			if ev.ID != 0 && ev.ID <= watermark {
				continue // already replayed
			}
			if err := h.writeEvent(w, ev); err != nil {
				h.errorCount.Add(1)
				return
			}
			watermark = ev.ID
			flusher.Flush()
			h.eventsSent.Add(1)
			h.lastActivity.Store(time.Now())
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent renders one event in SSE wire format. Payload lines are each
// prefixed with data: so embedded newlines survive the framing.
func (h *Handler) writeEvent(w http.ResponseWriter, ev session.Event) error {
	eventType := ev.Type
	if eventType == "" {
		eventType = "message"
	}

	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\n", ev.ID, eventType); err != nil {
		return err
	}
	for _, line := range strings.Split(string(ev.Data), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// sessionToken reads the session token from the header, falling back to the
// query string for EventSource clients that cannot set headers.
func sessionToken(r *http.Request) string {
	if token := r.Header.Get(gateway.HeaderSessionID); token != "" {
		return token
	}
	return r.URL.Query().Get("session")
}

// lastEventID reads the replay marker from the header or query string. A
// missing or malformed marker replays the full buffer.
func lastEventID(r *http.Request) uint64 {
	raw := r.Header.Get(gateway.HeaderLastEventID)
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// conn is one registered SSE push connection. Send never blocks: a full
// queue fails the connection so the registry evicts the slow consumer.
type conn struct {
	id        string
	send      chan session.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ notify.PushConn = (*conn)(nil)

func newConn(id string, buffer int) *conn {
	return &conn{
		id:   id,
		send: make(chan session.Event, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection identity used for registry removal.
func (c *conn) ID() string {
	return c.id
}

// Send queues an event for the stream writer.
func (c *conn) Send(ev session.Event) error {
	select {
	case <-c.done:
		return errors.WrapInvalid(errors.ErrConnectionLost, "conn", "Send", "connection closed")
	default:
	}

	select {
	case c.send <- ev:
		return nil
	default:
		return errors.WrapTransient(errors.ErrBufferFull, "conn", "Send", "slow sse consumer")
	}
}

// Close unblocks the stream writer. Idempotent.
func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Meta returns the component metadata
func (h *Handler) Meta() component.Metadata {
	return component.Metadata{
		Name:        "sse-gateway",
		Type:        "transport",
		Description: "Server-sent-events push transport with replay on reconnect",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (h *Handler) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(h.errorCount.Load()),
		Uptime:     time.Since(h.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (h *Handler) DataFlow() component.FlowMetrics {
	sent := h.eventsSent.Load()

	var perSecond float64
	if uptime := time.Since(h.startTime).Seconds(); uptime > 0 {
		perSecond = float64(sent) / uptime
	}

	var errorRate float64
	if sent > 0 {
		errorRate = float64(h.errorCount.Load()) / float64(sent)
	}

	lastActivity, _ := h.lastActivity.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}
