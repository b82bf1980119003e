// Package worker provides a generic, bounded worker pool.
//
// # Overview
//
// A Pool runs a fixed number of goroutines draining a bounded queue of
// typed work items:
//   - Generic over the work type, no assertions in processors
//   - Non-blocking Submit with ErrQueueFull as the backpressure signal
//   - Context-aware shutdown that drains in-flight work
//   - Atomic counters always on, Prometheus metrics opt-in
//
// ShardedPool is the keyed variant: Submit takes a key, and every item
// sharing a key lands on the same worker's queue. That serializes
// processing per key (distinct keys still run in parallel) at the cost
// of per-shard rather than global backpressure.
//
// The notification dispatcher is the main consumer: every inbound
// notification becomes one job per target session, sharded by session id
// so a session's events are delivered in order, and the shard count
// bounds how much concurrent fan-out a burst can create.
//
// # Usage
//
//	type pushJob struct {
//	    SessionID string
//	    EventID   uint64
//	}
//
//	pool := worker.NewPool[pushJob](
//	    8,    // workers
//	    512,  // queue size
//	    func(ctx context.Context, job pushJob) error {
//	        return deliver(ctx, job)
//	    },
//	)
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(job); errors.Is(err, worker.ErrQueueFull) {
//	    // Overloaded. Drop the job; the client replays on reconnect.
//	}
//
// # Backpressure
//
// Submit never blocks. A full queue returns ErrQueueFull immediately and
// the item is counted as dropped. Blocking submits were rejected: on a
// request path they turn overload into latency, which is worse than an
// explicit drop the caller can reason about. For sessions, a dropped
// push is recoverable because the event stays in the replay buffer.
//
// # Shutdown
//
// Stop(timeout) closes the queue, lets workers drain what is left, and
// waits up to timeout. ErrStopTimeout means a processor is stuck; there
// is no per-item timeout, so processors that can hang must honor their
// context.
//
// Cancelling the Start context is the harder stop: workers exit on their
// next iteration even with items still queued.
//
// # Metrics
//
// With WithMetricsRegistry the pool registers, under the given prefix:
//
//	<prefix>_queue_depth
//	<prefix>_utilization
//	<prefix>_submitted_total
//	<prefix>_processed_total
//	<prefix>_failed_total
//	<prefix>_dropped_total
//	<prefix>_processing_duration_seconds{status}
//
// Queue depth and utilization refresh on a one second ticker.
//
// # Errors
//
// Pool errors are plain sentinels, not classified errors: they are
// either programming errors (ErrPoolNotStarted, ErrPoolAlreadyStarted,
// ErrNilProcessor) or resource exhaustion (ErrQueueFull, ErrStopTimeout).
// Processor return values are counted as failures but never interpreted.
//
// # Limitations
//
// Worker count is fixed at construction, queueing is FIFO, and queued
// items cannot be cancelled individually. These are deliberate; the
// dispatcher needs predictable resource usage more than scheduling
// features.
package worker
