package duplex

import (
	"sync"
	"time"
)

// StreamContext tracks one logical stream multiplexed over a duplex
// connection. Each side half-closes independently: the stream is terminal
// once both sides are done, or immediately on error or connection close.
type StreamContext struct {
	id        string
	meta      Meta
	createdAt time.Time

	mu           sync.Mutex
	localDone    bool
	remoteDone   bool
	errored      bool
	closed       bool
	bytesIn      int64
	chunksIn     int64
	lastActivity time.Time
}

func newStreamContext(id string, meta Meta) *StreamContext {
	now := time.Now()
	return &StreamContext{
		id:           id,
		meta:         meta,
		createdAt:    now,
		lastActivity: now,
	}
}

// ID returns the stream identity used in frames.
func (s *StreamContext) ID() string {
	return s.id
}

// Meta returns the stream's start metadata.
func (s *StreamContext) Meta() Meta {
	return s.meta
}

// Binary reports whether chunk data travels as binary frames.
func (s *StreamContext) Binary() bool {
	return s.meta.Binary
}

// Terminal reports whether the stream has finished: both half-closes seen,
// an error raised, or the owning connection closed.
func (s *StreamContext) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.localDone && s.remoteDone) || s.errored || s.closed
}

// Errored reports whether the stream was aborted.
func (s *StreamContext) Errored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored
}

// LocalDone reports whether this side has finished sending.
func (s *StreamContext) LocalDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localDone
}

// RemoteDone reports whether the peer has finished sending.
func (s *StreamContext) RemoteDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteDone
}

// BytesReceived returns the accumulated payload volume from the peer.
func (s *StreamContext) BytesReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesIn
}

// ChunksReceived returns the number of chunks received from the peer.
func (s *StreamContext) ChunksReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunksIn
}

// IdleFor returns how long the stream has seen no traffic.
func (s *StreamContext) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *StreamContext) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *StreamContext) recordChunk(n int) {
	s.mu.Lock()
	s.bytesIn += int64(n)
	s.chunksIn++
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// markLocalDone records this side's half-close and reports whether the
// stream became terminal.
func (s *StreamContext) markLocalDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localDone = true
	return s.terminalLocked()
}

// markRemoteDone records the peer's half-close and reports whether the
// stream became terminal.
func (s *StreamContext) markRemoteDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteDone = true
	return s.terminalLocked()
}

func (s *StreamContext) markErrored() {
	s.mu.Lock()
	s.errored = true
	s.mu.Unlock()
}

func (s *StreamContext) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *StreamContext) terminalLocked() bool {
	return (s.localDone && s.remoteDone) || s.errored || s.closed
}
