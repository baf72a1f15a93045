package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming for live room fan-out. Every instance publishes room events
// on a per-room channel and pattern-subscribes to all of them.
const (
	channelRoomEvents = "%s:room:%s:events"
	roomSegment       = "room"
	eventsSuffix      = "events"
)

// RoomEventsChannel returns the channel carrying events for one room.
func RoomEventsChannel(prefix, roomID string) string {
	return fmt.Sprintf(channelRoomEvents, prefix, roomID)
}

// RoomEventsPattern returns the pattern matching every room events channel.
func RoomEventsPattern(prefix string) string {
	return fmt.Sprintf(channelRoomEvents, prefix, "*")
}

// RoomIDFromChannel extracts the room id from a room events channel.
func RoomIDFromChannel(channel string) (string, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != roomSegment || parts[3] != eventsSuffix || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
