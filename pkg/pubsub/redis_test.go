package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPubSub(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ps := NewRedisPubSubFromClient(client)
	t.Cleanup(func() { ps.Close() })
	return ps
}

func TestRedisPubSubPatternDelivery(t *testing.T) {
	ps := newTestPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := ps.SubscribePattern(ctx, RoomEventsPattern("live"))
	require.NoError(t, err)

	evt, err := NewEvent("viewer_count_updated", "ls-1", map[string]int{"viewer_count": 2})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, RoomEventsChannel("live", "ls-1"), evt))

	select {
	case got := <-events:
		assert.Equal(t, "viewer_count_updated", got.Type)
		assert.Equal(t, "ls-1", got.RoomID)
		var payload map[string]int
		require.NoError(t, got.UnmarshalPayload(&payload))
		assert.Equal(t, 2, payload["viewer_count"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRedisPubSubUnsubscribeClosesStream(t *testing.T) {
	ps := newTestPubSub(t)
	ctx := context.Background()

	events, err := ps.Subscribe(ctx, RoomEventsChannel("live", "ls-2"))
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, RoomEventsChannel("live", "ls-2")))

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream not closed")
	}
}
