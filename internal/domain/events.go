package domain

import "time"

// EventKind names a message fanned out to room subscribers.
type EventKind string

const (
	EventRoomState          EventKind = "room_state"
	EventViewerCountUpdated EventKind = "viewer_count_updated"
	EventParticipantJoined  EventKind = "participant_joined"
	EventParticipantLeft    EventKind = "participant_left"
	EventRoomEnded          EventKind = "room_ended"
	EventStreamStarted      EventKind = "stream_started"
	EventJoinRoom           EventKind = "join_room"
	EventCommentCreated     EventKind = "comment_created"
	EventProductShared      EventKind = "product_shared"
	EventStreamSignal       EventKind = "stream_signal"
)

// Reasons carried by room_ended.
const (
	EndReasonOwnerStopped      = "owner_stopped"
	EndReasonOwnerDisconnected = "owner_disconnected"
)

// Broadcast describes one event to deliver. Domain operations return
// broadcasts instead of sending them; the transport layer dispatches.
// An empty ConnectionID addresses every subscriber of the room channel;
// otherwise only that connection receives it.
type Broadcast struct {
	RoomID       string      `json:"room_id"`
	Event        EventKind   `json:"event"`
	Payload      interface{} `json:"payload"`
	ConnectionID string      `json:"connection_id,omitempty"`
}

// ToRoom builds a room-wide broadcast.
func ToRoom(roomID string, event EventKind, payload interface{}) Broadcast {
	return Broadcast{RoomID: roomID, Event: event, Payload: payload}
}

// ToConnection builds a broadcast for a single connection.
func ToConnection(roomID, connectionID string, event EventKind, payload interface{}) Broadcast {
	return Broadcast{RoomID: roomID, Event: event, Payload: payload, ConnectionID: connectionID}
}

// RoomUpdate is the result of a state-changing room operation.
type RoomUpdate struct {
	Room       *Room
	Broadcasts []Broadcast
}

// JoinResult is returned by a join request. Descriptor tells the client how
// to open its live connection; the registry is not touched until it does.
type JoinResult struct {
	Room       *Room          `json:"room"`
	Descriptor JoinDescriptor `json:"descriptor"`
}

// JoinDescriptor names the live endpoint, the room's broadcast channel and
// the message the client must send once connected.
type JoinDescriptor struct {
	Endpoint string      `json:"endpoint"`
	Channel  string      `json:"channel"`
	Event    EventKind   `json:"event"`
	Payload  JoinPayload `json:"payload"`
}

// JoinPayload is the body of the join_room message.
type JoinPayload struct {
	RoomID string `json:"room_id"`
	Role   Role   `json:"role"`
	UserID *int64 `json:"user_id,omitempty"`
}

// PresenceRemoval is the result of unregistering a connection.
type PresenceRemoval struct {
	Room              *Room
	Participant       Participant
	EndedByDisconnect bool
	Broadcasts        []Broadcast
}

// Event payloads.

type ViewerCountPayload struct {
	RoomID      string `json:"room_id"`
	ViewerCount int    `json:"viewer_count"`
}

type ParticipantPayload struct {
	RoomID string `json:"room_id"`
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
}

type RoomEndedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type StreamStartedPayload struct {
	RoomID      string    `json:"room_id"`
	IsStreaming bool      `json:"is_streaming"`
	StartedAt   time.Time `json:"started_at"`
}

type CommentPayload struct {
	RoomID    string    `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductSharedPayload struct {
	RoomID    string    `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

type StreamSignalPayload struct {
	RoomID       string      `json:"room_id"`
	FromUserID   int64       `json:"from_user_id"`
	ToUserID     *int64      `json:"to_user_id,omitempty"`
	Payload      interface{} `json:"payload"`
	ConnectionID string      `json:"connection_id"`
}
