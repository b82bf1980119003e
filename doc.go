// Package mcpgateway is a protocol gateway for MCP-style clients: one
// binary terminating JSON-RPC requests, server-sent-event push streams and
// full-duplex websocket streams, with session-scoped notification buffering
// and replay in between.
//
// # Architecture
//
// Requests and pushes meet in the session:
//
//	  POST /mcp               GET /mcp (SSE)        /stream (websocket)
//	      |                        |                       |
//	gateway/http             gateway/sse           gateway/duplex
//	      |                        |                       |
//	  dispatch  ----------- session.Manager ----------- duplex.Engine
//	                               |
//	                         notify.Dispatcher
//	                               |
//	                    notify.Source  <- NATS (notify.>)
//
// Every session owns a monotonic event id counter and a bounded replay
// buffer. Notifications are buffered for each target session before any
// live delivery, so a client reconnecting with its Last-Event-ID marker
// replays what it missed; the buffer is bounded, and gaps beyond its
// capacity are accepted rather than tracked.
//
// # Packages
//
// Protocol surface:
//   - gateway: JSON-RPC envelope, error code mapping, core methods
//   - gateway/http: request endpoint, session headers, /healthz, /stats
//   - gateway/sse: push transport with replay on reconnect
//   - gateway/duplex: bidirectional websocket streaming
//
// Core pipeline:
//   - session: session table, sliding expiry, replay buffers
//   - notify: push connection registry, fan-out dispatcher, NATS source
//   - dispatch: method name to handler routing
//
// Infrastructure:
//   - component: lifecycle and discoverability contracts
//   - config: JSON configuration with environment overrides
//   - errors: error taxonomy and classification
//   - health: component health aggregation
//   - metric: Prometheus registry and endpoint
//   - natsclient: NATS connection with circuit breaker
//   - pkg/buffer, pkg/retry, pkg/worker: generic building blocks
//
// # Lifecycle
//
// All long-running components follow the same pattern:
//
//	Initialize() error                 // validate configuration, no context
//	Start(ctx context.Context) error   // spawn background work
//	Stop(timeout time.Duration) error  // graceful shutdown
//
// cmd/gateway starts components in dependency order (sessions, dispatcher,
// duplex engine, NATS source, HTTP listener) and stops them in reverse on
// SIGINT or SIGTERM.
package mcpgateway
