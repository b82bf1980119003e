package buffer

import (
	"context"
)

// Buffer is the interface satisfied by every buffer in this package,
// parameterized by the item type.
type Buffer[T any] interface {
	// Write adds an item. What happens at capacity depends on the
	// overflow policy.
	Write(item T) error

	// Read removes and returns the oldest item. The bool is false when
	// the buffer is empty.
	Read() (T, bool)

	// ReadBatch removes and returns up to max items, oldest first.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (T, bool)

	// Size returns the current item count.
	Size() int

	// Capacity returns the fixed maximum item count.
	Capacity() int

	// IsFull reports whether the buffer is at capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Snapshot returns a copy of all buffered items in order, oldest
	// first, without removing them. Replay reads the retained window
	// this way so concurrent writes stay unaffected.
	Snapshot() []T

	// Clear removes all items.
	Clear()

	// Stats returns the buffer's always-on statistics.
	Stats() *Statistics

	// Close releases the buffer's resources and wakes blocked writers.
	Close() error
}

// OverflowPolicy defines the behavior of Write on a full buffer.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room.
	DropOldest OverflowPolicy = iota

	// DropNewest rejects the incoming item.
	DropNewest

	// Block makes Write wait until a reader frees space.
	Block
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback receives each item discarded by the overflow policy.
type DropCallback[T any] func(item T)

type contextKey string

// ContextKeyStats carries buffer statistics through a context.
const ContextKeyStats contextKey = "buffer-stats"

// WithStats attaches statistics to the context.
func WithStats(ctx context.Context, stats *Statistics) context.Context {
	return context.WithValue(ctx, ContextKeyStats, stats)
}

// StatsFromContext retrieves statistics attached with WithStats.
func StatsFromContext(ctx context.Context) (*Statistics, bool) {
	stats, ok := ctx.Value(ContextKeyStats).(*Statistics)
	return stats, ok
}

// NewCircularBuffer creates a circular buffer with the given capacity.
// Behavior beyond capacity is set through functional options; the
// default policy is DropOldest. Fails if requested metrics cannot be
// registered.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
