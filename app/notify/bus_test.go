package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Notification bus test cases:
1) Publish with a live subscriber delivers the notification with defaults
2) WithAutoClose overrides the display duration; non-positive keeps default
3) Publish with no subscribers does not error (dropped with a log line)
4) Subscriptions are per-user: user A never sees user B's notifications
5) Close ends the stream
*/

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestBus_PublishDelivered(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewBus(rdb)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, 1, SeveritySuccess, "Doctor added successfully"))

	select {
	case n := <-sub.C:
		assert.Equal(t, SeveritySuccess, n.Severity)
		assert.Equal(t, "Doctor added successfully", n.Message)
		assert.Equal(t, DefaultAutoCloseMS, n.AutoCloseMS)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestBus_PublishAutoCloseOverride(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewBus(rdb)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, 1, SeverityWarning, "session expires soon", WithAutoClose(8000)))

	select {
	case n := <-sub.C:
		assert.Equal(t, 8000, n.AutoCloseMS)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	// Non-positive override keeps the default
	require.NoError(t, bus.Publish(ctx, 1, SeverityInfo, "saved", WithAutoClose(0)))

	select {
	case n := <-sub.C:
		assert.Equal(t, DefaultAutoCloseMS, n.AutoCloseMS)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestBus_PublishNoSubscribers(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewBus(rdb)

	err := bus.Publish(context.Background(), 42, SeverityError, "something failed")
	assert.NoError(t, err)
}

func TestBus_PerUserChannels(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewBus(rdb)
	ctx := context.Background()

	subA, err := bus.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer subA.Close()

	subB, err := bus.Subscribe(ctx, 2)
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, bus.Publish(ctx, 2, SeverityInfo, "for user two"))

	select {
	case n := <-subB.C:
		assert.Equal(t, "for user two", n.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered to user 2")
	}

	select {
	case n := <-subA.C:
		t.Fatalf("user 1 received a notification meant for user 2: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_CloseEndsStream(t *testing.T) {
	rdb := newTestRedis(t)
	bus := NewBus(rdb)

	sub, err := bus.Subscribe(context.Background(), 1)
	require.NoError(t, err)

	sub.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after Close")
	}
}
