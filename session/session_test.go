package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_RecordAssignsIncreasingIDs(t *testing.T) {
	sess, err := newSession("sess-test", 100)
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		ev, err := sess.Record("message", json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.Equal(t, i, ev.ID)
	}

	assert.Equal(t, uint64(5), sess.LastEventID())
}

func TestSession_ReplayOrder(t *testing.T) {
	// N <= C notifications, replay from 0 returns exactly those N in order
	sess, err := newSession("sess-test", 100)
	require.NoError(t, err)

	const n = 20
	for i := 0; i < n; i++ {
		payload := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
		_, err := sess.Record("message", payload)
		require.NoError(t, err)
	}

	events := sess.ReplayAfter(0)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.ID)
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(ev.Data))
	}
}

func TestSession_ReplayAfterMarker(t *testing.T) {
	sess, err := newSession("sess-test", 100)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := sess.Record("message", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	events := sess.ReplayAfter(7)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(8), events[0].ID)
	assert.Equal(t, uint64(10), events[2].ID)

	// Marker at or past the newest id yields nothing
	assert.Nil(t, sess.ReplayAfter(10))
	assert.Nil(t, sess.ReplayAfter(99))
}

func TestSession_BufferEviction(t *testing.T) {
	// After C+k inserts exactly the most recent C remain, ids strictly increasing
	const capacity = 10
	sess, err := newSession("sess-test", capacity)
	require.NoError(t, err)

	const total = capacity + 7
	for i := 0; i < total; i++ {
		_, err := sess.Record("message", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	assert.Equal(t, capacity, sess.BufferedCount())

	events := sess.ReplayAfter(0)
	require.Len(t, events, capacity)

	// Oldest retained is total-capacity+1, newest is total
	assert.Equal(t, uint64(total-capacity+1), events[0].ID)
	assert.Equal(t, uint64(total), events[len(events)-1].ID)

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].ID, events[i-1].ID)
	}
}

func TestSession_ReplayAfterOverflowGap(t *testing.T) {
	// A marker older than the oldest retained id still replays what remains
	const capacity = 5
	sess, err := newSession("sess-test", capacity)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := sess.Record("message", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	// Events 1-7 were evicted; marker 2 predates the oldest retained (8)
	events := sess.ReplayAfter(2)
	require.Len(t, events, capacity)
	assert.Equal(t, uint64(8), events[0].ID)
}

func TestSession_ConcurrentRecord(t *testing.T) {
	sess, err := newSession("sess-test", 1000)
	require.NoError(t, err)

	const goroutines = 10
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, err := sess.Record("message", json.RawMessage(`{}`))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	events := sess.ReplayAfter(0)
	require.Len(t, events, goroutines*perGoroutine)

	// Ids must be unique and buffered in increasing order
	seen := make(map[uint64]bool, len(events))
	for i, ev := range events {
		assert.False(t, seen[ev.ID], "duplicate event id %d", ev.ID)
		seen[ev.ID] = true
		if i > 0 {
			assert.Greater(t, ev.ID, events[i-1].ID)
		}
	}
}

func TestSession_SubscriptionsIdempotent(t *testing.T) {
	sess, err := newSession("sess-test", 10)
	require.NoError(t, err)

	sess.Subscribe("file:///a.txt")
	sess.Subscribe("file:///a.txt")
	assert.True(t, sess.IsSubscribed("file:///a.txt"))
	assert.Len(t, sess.Subscriptions(), 1)

	// Exact match only
	assert.False(t, sess.IsSubscribed("file:///a"))
	assert.False(t, sess.IsSubscribed("file:///a.txt/"))

	// Unsubscribe twice, and for a never-subscribed uri
	sess.Unsubscribe("file:///a.txt")
	sess.Unsubscribe("file:///a.txt")
	sess.Unsubscribe("file:///never.txt")
	assert.False(t, sess.IsSubscribed("file:///a.txt"))
	assert.Empty(t, sess.Subscriptions())
}

func TestNewToken_Format(t *testing.T) {
	token, err := newToken()
	require.NoError(t, err)

	assert.Len(t, token, len("sess-")+32)
	assert.Contains(t, token, "sess-")

	// Tokens are unguessable; two mints never collide
	other, err := newToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
