package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom     = "join_room"
	MsgTypeLeaveRoom    = "leave_room"
	MsgTypeSendComment  = "send_comment"
	MsgTypeShareProduct = "share_product"
	MsgTypeStreamSignal = "stream_signal"
	MsgTypePing         = "ping"
)

// WebSocket message types to client, besides the room EventKinds.
const (
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// Client -> Server messages

// BaseMessage is the envelope shared by every inbound message.
type BaseMessage struct {
	Type string `json:"type"`
}

// JoinRoomMessage opens presence in a room for this connection.
type JoinRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Role   Role   `json:"role"`
	UserID *int64 `json:"user_id,omitempty"`
}

// LeaveRoomMessage closes presence without dropping the socket.
type LeaveRoomMessage struct {
	Type string `json:"type"`
}

// SendCommentMessage posts a chat comment to the joined room.
type SendCommentMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ShareProductMessage showcases a product to the joined room.
type ShareProductMessage struct {
	Type    string  `json:"type"`
	Product Product `json:"product"`
}

// StreamSignalMessage relays an opaque signalling payload to the room.
type StreamSignalMessage struct {
	Type     string          `json:"type"`
	ToUserID *int64          `json:"to_user_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Server -> Client messages

// ConnectedMessage greets a new socket with its connection id.
type ConnectedMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// AckMessage confirms an inbound message was applied.
type AckMessage struct {
	Type   string `json:"type"`
	For    string `json:"for"`
	RoomID string `json:"room_id,omitempty"`
}

// ErrorMessage is sent when an inbound message is rejected.
type ErrorMessage struct {
	Type    string `json:"type"`
	For     string `json:"for,omitempty"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(forType, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, For: forType, Message: message}
}

// NewAckMessage creates a new ack message.
func NewAckMessage(forType, roomID string) *AckMessage {
	return &AckMessage{Type: MsgTypeAck, For: forType, RoomID: roomID}
}
