package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopProcessor(_ context.Context, _ pushJob) error {
	return nil
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	err := pool.Submit(pushJob{sessionID: "sess-a", eventID: 1})
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	err := pool.Start(context.Background())
	assert.ErrorIs(t, err, ErrPoolAlreadyStarted)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(5*time.Second))

	err := pool.Submit(pushJob{sessionID: "sess-a", eventID: 1})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestPool_QueueFullSentinel(t *testing.T) {
	// One worker stuck on a slow job, queue of two.
	slow := func(_ context.Context, _ pushJob) error {
		time.Sleep(1 * time.Second)
		return nil
	}
	pool := NewPool(1, 2, slow)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	var queueFullErr error
	for i := 0; i < 10; i++ {
		if err := pool.Submit(pushJob{sessionID: "sess-a", eventID: uint64(i + 1)}); err != nil {
			queueFullErr = err
			break
		}
	}

	assert.ErrorIs(t, queueFullErr, ErrQueueFull)
}

func TestPool_StopTimeoutSentinel(t *testing.T) {
	blocking := func(ctx context.Context, _ pushJob) error {
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	pool := NewPool(1, 10, blocking)

	require.NoError(t, pool.Start(context.Background()))
	_ = pool.Submit(pushJob{sessionID: "sess-a", eventID: 1})

	// Let the worker pick the job up before asking for a fast stop.
	time.Sleep(10 * time.Millisecond)

	err := pool.Stop(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)
}

func TestPool_NilProcessorSentinel(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "nil processor must panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrNilProcessor)
	}()
	NewPool[pushJob](5, 100, nil)
}

func TestPool_SentinelsReturnedUnwrapped(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	err := pool.Submit(pushJob{sessionID: "sess-a", eventID: 1})

	assert.ErrorIs(t, err, ErrPoolNotStarted)
	assert.Equal(t, ErrPoolNotStarted, err, "sentinels are returned without wrapping")

	wrapped := errors.Join(errors.New("outer"), err)
	assert.ErrorIs(t, wrapped, ErrPoolNotStarted)
}
