package store

import "fmt"

// DefaultPrefix namespaces every key written by the service.
const DefaultPrefix = "live"

// Keys builds the Redis key layout:
//
//	{prefix}:room:{room_id}               STRING  room record (JSON)
//	{prefix}:room:{room_id}:participants  HASH    connection_id -> participant (JSON)
//	{prefix}:socket:{connection_id}       STRING  room_id (presence index)
//	{prefix}:rooms                        SET     tracked room ids
type Keys struct {
	prefix string
}

// NewKeys returns a key builder. An empty prefix uses DefaultPrefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// Prefix returns the namespace, shared with the event bus channels.
func (k Keys) Prefix() string { return k.prefix }

func (k Keys) Room(roomID string) string {
	return fmt.Sprintf("%s:room:%s", k.prefix, roomID)
}

func (k Keys) Participants(roomID string) string {
	return fmt.Sprintf("%s:room:%s:participants", k.prefix, roomID)
}

func (k Keys) Socket(connectionID string) string {
	return fmt.Sprintf("%s:socket:%s", k.prefix, connectionID)
}

func (k Keys) RoomIndex() string {
	return k.prefix + ":rooms"
}
