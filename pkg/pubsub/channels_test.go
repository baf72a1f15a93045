package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomEventsChannel(t *testing.T) {
	assert.Equal(t, "live:room:ls-01hx:events", RoomEventsChannel("live", "ls-01hx"))
	assert.Equal(t, "live:room:*:events", RoomEventsPattern("live"))

	roomID, ok := RoomIDFromChannel("live:room:ls-01hx:events")
	require.True(t, ok)
	assert.Equal(t, "ls-01hx", roomID)

	for _, bad := range []string{"", "live:room::events", "live:rooms:x:events", "live:room:x:other", "a:b"} {
		_, ok := RoomIDFromChannel(bad)
		assert.False(t, ok, bad)
	}
}
