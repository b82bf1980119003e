package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShardedPool(t *testing.T) {
	processor := func(_ context.Context, _ pushJob) error { return nil }

	pool := NewShardedPool(4, 32, processor)
	assert.Equal(t, 4, pool.shards)
	assert.Equal(t, 32, pool.queueSize)
	assert.Len(t, pool.queues, 4)

	// Zero values fall back to defaults.
	pool = NewShardedPool(0, 32, processor)
	assert.Equal(t, 8, pool.shards)

	pool = NewShardedPool(4, 0, processor)
	assert.Equal(t, 128, pool.queueSize)

	assert.Panics(t, func() {
		NewShardedPool[pushJob](4, 32, nil)
	})
}

func TestShardedPool_SameKeyStaysOrdered(t *testing.T) {
	var mu sync.Mutex
	var order []uint64

	processor := func(_ context.Context, job pushJob) error {
		// Make the first item slow so any cross-worker handoff would
		// surface as a reordering.
		if job.eventID == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		order = append(order, job.eventID)
		mu.Unlock()
		return nil
	}

	pool := NewShardedPool(8, 64, processor)
	require.NoError(t, pool.Start(context.Background()))

	const events = 20
	for i := 1; i <= events; i++ {
		require.NoError(t, pool.Submit("sess-a", pushJob{sessionID: "sess-a", eventID: uint64(i)}))
	}

	require.NoError(t, pool.Stop(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, events)
	for i, id := range order {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestShardedPool_OrderingPerKeyUnderChurn(t *testing.T) {
	var mu sync.Mutex
	perKey := make(map[string][]uint64)

	processor := func(_ context.Context, job pushJob) error {
		mu.Lock()
		perKey[job.sessionID] = append(perKey[job.sessionID], job.eventID)
		mu.Unlock()
		return nil
	}

	pool := NewShardedPool(4, 256, processor)
	require.NoError(t, pool.Start(context.Background()))

	keys := []string{"sess-a", "sess-b", "sess-c", "sess-d", "sess-e"}
	var wg sync.WaitGroup
	wg.Add(len(keys))
	for _, key := range keys {
		go func(key string) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				assert.NoError(t, pool.Submit(key, pushJob{sessionID: key, eventID: uint64(i)}))
			}
		}(key)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	for _, key := range keys {
		require.Len(t, perKey[key], 50, key)
		for i, id := range perKey[key] {
			require.Equal(t, uint64(i+1), id, key)
		}
	}
}

func TestShardedPool_Lifecycle(t *testing.T) {
	var processed int64
	processor := func(_ context.Context, _ pushJob) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}

	pool := NewShardedPool(2, 16, processor)

	assert.ErrorIs(t, pool.Submit("sess-a", pushJob{}), ErrPoolNotStarted)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	assert.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit("sess-a", pushJob{eventID: uint64(i + 1)}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), atomic.LoadInt64(&processed))

	assert.ErrorIs(t, pool.Submit("sess-a", pushJob{eventID: 999}), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second), "second Stop is a no-op")
}

func TestShardedPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	processor := func(_ context.Context, _ pushJob) error {
		started <- struct{}{}
		<-release
		return nil
	}

	// One shard with a queue of one: a busy worker plus a queued item
	// leaves no room for a third.
	pool := NewShardedPool(1, 1, processor)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit("sess-a", pushJob{eventID: 1}))
	<-started
	require.NoError(t, pool.Submit("sess-a", pushJob{eventID: 2}))

	err := pool.Submit("sess-a", pushJob{eventID: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(release)
	require.NoError(t, pool.Stop(5*time.Second))
}

func TestShardedPool_Stats(t *testing.T) {
	processor := func(_ context.Context, job pushJob) error {
		if job.fail {
			return assert.AnError
		}
		return nil
	}

	pool := NewShardedPool(2, 16, processor)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit("sess-a", pushJob{eventID: 1}))
	require.NoError(t, pool.Submit("sess-b", pushJob{eventID: 2, fail: true}))

	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Workers)
	assert.Equal(t, int64(2), stats.Submitted)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}
