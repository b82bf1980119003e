package buffer

import (
	"fmt"
	"math/rand"
	"testing"
)

// replayEvent approximates the per-session notification record buffered
// for SSE replay.
type replayEvent struct {
	ID      uint64
	Type    string
	Payload []byte
}

func makeReplayEvent(id int) replayEvent {
	return replayEvent{
		ID:      uint64(id),
		Type:    "notifications/resources/updated",
		Payload: make([]byte, 128),
	}
}

// BenchmarkWrite measures writes across capacities and overflow policies.
// Capacity 100 with DropOldest is the replay buffer configuration.
func BenchmarkWrite(b *testing.B) {
	cases := []struct {
		name     string
		capacity int
		policy   OverflowPolicy
	}{
		{"Replay_100_DropOldest", 100, DropOldest},
		{"Replay_100_DropNewest", 100, DropNewest},
		{"Large_1000_DropOldest", 1000, DropOldest},
		{"Large_1000_DropNewest", 1000, DropNewest},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](bc.capacity,
				WithOverflowPolicy[replayEvent](bc.policy))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					_ = buf.Write(makeReplayEvent(i))
					i++
				}
			})
		})
	}
}

// BenchmarkRead measures reads from pre-populated buffers.
func BenchmarkRead(b *testing.B) {
	for _, capacity := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("Cap_%d", capacity), func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](capacity)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			for i := 0; i < capacity; i++ {
				_ = buf.Write(makeReplayEvent(i))
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					buf.Read()
				}
			})
		})
	}
}

// BenchmarkReadBatch measures draining a full buffer in batches, the
// access pattern of a Last-Event-ID replay.
func BenchmarkReadBatch(b *testing.B) {
	for _, batchSize := range []int{1, 10, 50, 100} {
		b.Run(fmt.Sprintf("BatchSize_%d", batchSize), func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](1000)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for j := 0; j < 1000; j++ {
					_ = buf.Write(makeReplayEvent(j))
				}
				for !buf.IsEmpty() {
					buf.ReadBatch(batchSize)
				}
			}
		})
	}
}

// BenchmarkPeek measures non-consuming reads.
func BenchmarkPeek(b *testing.B) {
	buf, err := NewCircularBuffer[replayEvent](1000)
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Close()

	for i := 0; i < 1000; i++ {
		_ = buf.Write(makeReplayEvent(i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf.Peek()
		}
	})
}

// BenchmarkMixed interleaves writes, reads and peeks the way a session
// under live traffic with occasional replays does.
func BenchmarkMixed(b *testing.B) {
	for _, capacity := range []int{100, 1000} {
		b.Run(fmt.Sprintf("Cap_%d", capacity), func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](capacity,
				WithOverflowPolicy[replayEvent](DropOldest))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			for i := 0; i < capacity/2; i++ {
				_ = buf.Write(makeReplayEvent(i))
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := capacity / 2
				for pb.Next() {
					switch rand.Intn(5) {
					case 0, 1:
						_ = buf.Write(makeReplayEvent(i))
						i++
					case 2, 3:
						buf.Read()
					case 4:
						buf.Peek()
					}
				}
			})
		})
	}
}

// BenchmarkOverflow measures sustained writes into an already full
// buffer, which is steady state for a session nobody reconnects to.
func BenchmarkOverflow(b *testing.B) {
	policies := []struct {
		name   string
		policy OverflowPolicy
	}{
		{"DropOldest", DropOldest},
		{"DropNewest", DropNewest},
	}

	for _, pol := range policies {
		b.Run(pol.name, func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](100,
				WithOverflowPolicy[replayEvent](pol.policy))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(makeReplayEvent(i))
			}
		})
	}
}

// BenchmarkDropCallback measures the cost of the eviction callback used
// for drop accounting.
func BenchmarkDropCallback(b *testing.B) {
	cases := []struct {
		name         string
		withCallback bool
	}{
		{"WithoutCallback", false},
		{"WithCallback", true},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			opts := []Option[replayEvent]{WithOverflowPolicy[replayEvent](DropOldest)}
			if bc.withCallback {
				opts = append(opts, WithDropCallback(func(ev replayEvent) {
					_ = ev
				}))
			}

			buf, err := NewCircularBuffer[replayEvent](100, opts...)
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(makeReplayEvent(i))
			}
		})
	}
}

// BenchmarkCapacityScaling checks that write cost stays flat as capacity
// grows.
func BenchmarkCapacityScaling(b *testing.B) {
	for _, capacity := range []int{10, 100, 1000, 10000} {
		b.Run(fmt.Sprintf("Cap_%d", capacity), func(b *testing.B) {
			buf, err := NewCircularBuffer[replayEvent](capacity,
				WithOverflowPolicy[replayEvent](DropOldest))
			if err != nil {
				b.Fatal(err)
			}
			defer buf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(makeReplayEvent(i))
				if i%10 == 0 {
					buf.Read()
				}
			}
		})
	}
}
