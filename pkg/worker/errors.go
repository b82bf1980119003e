package worker

import "errors"

// Sentinel errors returned by Pool. They are returned unwrapped so
// callers can compare with errors.Is or direct equality.
var (
	// ErrPoolNotStarted is returned by Submit before Start has run.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted is returned by a second Start call.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is returned when the work queue is at capacity.
	// The dispatcher treats this as backpressure and drops the job.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor is the panic value when NewPool gets a nil
	// processor function.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout is returned when workers are still draining when
	// the Stop deadline passes.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
