// Package notify implements notification delivery to sessions.
//
// # Components
//
// Registry tracks the open push connections of every session, keyed by
// connection identity for O(1) removal, and broadcasts events to a session's
// connections in parallel. A failing connection is closed and unregistered
// without blocking its siblings; a session with zero connections is a no-op
// (the event waits in the session buffer for the next resume).
//
// Dispatcher is the delivery pipeline: for each target session it assigns
// the next event id, appends the framed notification to the session's replay
// buffer, and hands the broadcast to a worker pool sharded by session id,
// which keeps one session's events in id order on the wire. Resource-scoped
// notifications (notifications/resources/updated) only target sessions
// subscribed to exactly the carried uri; list-change notifications target
// every session.
//
// Source consumes Notification JSON from NATS subjects under notify.> and
// feeds the dispatcher, connecting the rest of the platform to the gateway's
// fan-out. Its startup subscribe retries with backoff while the broker
// connection settles.
//
// # Failure isolation
//
// Per-session buffering or delivery failures are logged and skipped; they
// never abort delivery to other sessions. A full fan-out queue drops only
// the live push, since the event is already buffered for replay.
package notify
