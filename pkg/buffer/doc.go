// Package buffer provides generic, thread-safe circular buffers with
// configurable overflow policies.
//
// # Overview
//
// A circular buffer here is a fixed-capacity ring where writes advance
// a head pointer and reads a tail pointer. The session package builds
// its per-session replay buffers on one with the DropOldest policy: a
// bounded window of recent events where new entries silently displace
// the oldest. Statistics are collected unconditionally; Prometheus
// export is opt-in.
//
// # Usage
//
//	buf, err := buffer.NewCircularBuffer[session.Event](100,
//	    buffer.WithOverflowPolicy[session.Event](buffer.DropOldest),
//	    buffer.WithMetrics[session.Event](registry, "session_replay"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	_ = buf.Write(event)
//	window := buf.Snapshot() // oldest first, buffer untouched
//
// # Overflow Policies
//
// Three behaviors when Write hits capacity:
//
//   - DropOldest: evict the oldest item to make room (default)
//   - DropNewest: reject the incoming item
//   - Block: wait until a reader frees a slot
//
// Under Block, WriteWithContext and WriteWithTimeout bound the wait.
// Evicted items can be observed through WithDropCallback.
//
// # Observability
//
// Every buffer carries a Statistics instance tracking writes, reads,
// peeks, overflows, drops and size with atomic counters, plus derived
// rates (throughput, drop rate, utilization). WithMetrics additionally
// exports the same activity as gateway_buffer_* Prometheus metrics with
// the owning component as a label. The two are tracked separately so
// Stats() keeps working in tests and deployments without a metrics
// registry, and so the derived rates do not require reading values back
// out of Prometheus.
//
// # Concurrency
//
// All operations are safe for concurrent producers and consumers.
// Internal state is guarded by a RWMutex, the Block policy waits on
// sync.Cond, and drop callbacks run after the lock is released.
package buffer
