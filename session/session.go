// Package session provides session identity, sliding expiry and per-session
// resumable event buffering for the gateway's push transports.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/pkg/buffer"
)

// Event is one buffered notification with its per-session event id.
// Events are immutable once recorded.
type Event struct {
	// ID is the per-session monotonic sequence number, starting at 1.
	ID uint64 `json:"id"`
	// Type is the push event type; empty means the default "message".
	Type string `json:"type,omitempty"`
	// Data is the JSON payload delivered to the client.
	Data json.RawMessage `json:"data"`
}

// Session holds the server-side state for one client session: a monotonic
// event counter, a bounded replay buffer, and the resource subscription set.
// All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	// lastActivity stores unix nanoseconds for lock-free sliding expiry
	lastActivity atomic.Int64

	// counter issues event ids; recordMu orders id assignment with the
	// buffer append so replay order always matches id order
	counter  atomic.Uint64
	recordMu sync.Mutex
	buf      buffer.Buffer[Event]

	subsMu sync.RWMutex
	subs   map[string]struct{}
}

// newSession creates a session with a fresh replay buffer of the given capacity.
func newSession(id string, bufferCapacity int) (*Session, error) {
	buf, err := buffer.NewCircularBuffer[Event](bufferCapacity,
		buffer.WithOverflowPolicy[Event](buffer.DropOldest),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Session", "newSession", "create event buffer")
	}

	s := &Session{
		id:        id,
		createdAt: time.Now(),
		buf:       buf,
		subs:      make(map[string]struct{}),
	}
	s.lastActivity.Store(time.Now().UnixNano())
	return s, nil
}

// ID returns the opaque session token.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastActivity returns the time of the most recent access.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Touch refreshes the sliding expiry window.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// IdleFor reports how long the session has been without activity.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity())
}

// Record assigns the next event id, buffers the event, and returns it.
// The oldest buffered event is evicted once the buffer is at capacity.
func (s *Session) Record(eventType string, data json.RawMessage) (Event, error) {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	ev := Event{
		ID:   s.counter.Add(1),
		Type: eventType,
		Data: data,
	}

	if err := s.buf.Write(ev); err != nil {
		return Event{}, errors.Wrap(err, "Session", "Record",
			fmt.Sprintf("buffer event %d", ev.ID))
	}

	s.Touch()
	return ev, nil
}

// ReplayAfter returns all buffered events with id greater than lastSeenID,
// oldest first. If lastSeenID predates the oldest retained event the gap is
// not recoverable; the replay returns everything still buffered.
func (s *Session) ReplayAfter(lastSeenID uint64) []Event {
	snapshot := s.buf.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	events := make([]Event, 0, len(snapshot))
	for _, ev := range snapshot {
		if ev.ID > lastSeenID {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return nil
	}
	return events
}

// LastEventID returns the most recently issued event id (0 if none yet).
func (s *Session) LastEventID() uint64 {
	return s.counter.Load()
}

// BufferedCount returns the number of events currently retained for replay.
func (s *Session) BufferedCount() int {
	return s.buf.Size()
}

// Subscribe adds uri to the subscription set. Idempotent.
func (s *Session) Subscribe(uri string) {
	s.subsMu.Lock()
	s.subs[uri] = struct{}{}
	s.subsMu.Unlock()
	s.Touch()
}

// Unsubscribe removes uri from the subscription set. Idempotent, including
// when uri was never subscribed.
func (s *Session) Unsubscribe(uri string) {
	s.subsMu.Lock()
	delete(s.subs, uri)
	s.subsMu.Unlock()
	s.Touch()
}

// IsSubscribed reports whether uri is in the subscription set. Exact string
// match only; no wildcard or prefix matching.
func (s *Session) IsSubscribed(uri string) bool {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	_, ok := s.subs[uri]
	return ok
}

// Subscriptions returns a snapshot of the subscribed resource identifiers.
func (s *Session) Subscriptions() []string {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	uris := make([]string, 0, len(s.subs))
	for uri := range s.subs {
		uris = append(uris, uri)
	}
	return uris
}

// clearSubscriptions empties the subscription set. Called on termination.
func (s *Session) clearSubscriptions() {
	s.subsMu.Lock()
	s.subs = make(map[string]struct{})
	s.subsMu.Unlock()
}

// close releases the session's buffer resources.
func (s *Session) close() {
	s.clearSubscriptions()
	_ = s.buf.Close()
}

// newToken mints an unguessable session token.
func newToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.WrapFatal(err, "Session", "newToken", "read random bytes")
	}
	return "sess-" + hex.EncodeToString(raw), nil
}
