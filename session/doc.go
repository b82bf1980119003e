// Package session owns session identity and resumable event state for the
// gateway's push transports.
//
// # Overview
//
// A Session binds a client's push channel and subscriptions across
// reconnects. Each session carries a monotonic event counter (ids start at 1
// and are never reused), a bounded FIFO replay buffer built on pkg/buffer,
// and an exact-match resource subscription set. The Manager holds the
// session table with sliding idle expiry and runs a background sweeper while
// started.
//
// # Replay semantics
//
// ReplayAfter(lastSeenID) returns buffered events with id greater than the
// marker, oldest first. Once the buffer overflows its capacity the evicted
// events are gone: a marker older than the oldest retained id replays only
// what remains. Callers resuming a push connection must tolerate gaps.
//
// # Concurrency
//
// The session table is a sync.Map so unrelated sessions never contend on a
// shared lock. Within one session, event id assignment and buffer append are
// ordered under a small per-session mutex so replay order always matches id
// order. Subscription sets use a per-session RWMutex.
package session
