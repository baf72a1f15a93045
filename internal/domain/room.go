package domain

import (
	"time"
)

// RoomStatus represents the lifecycle state of a live room.
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusEnded  RoomStatus = "ended"
)

// Role is the part a connection plays in a room.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleViewer
}

// Room is the shared record of one live broadcast.
// ViewerCount is derived from the participant registry and refreshed on
// every read and mutation; the stored value is only a cache.
type Room struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	OwnerID     int64      `json:"owner_id"`
	Status      RoomStatus `json:"status"`
	IsStreaming bool       `json:"is_streaming"`
	ViewerCount int        `json:"viewer_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// IsEnded reports whether the room reached its terminal state.
func (r *Room) IsEnded() bool {
	return r.Status == RoomStatusEnded
}

// Participant is one connection's entry in a room's registry.
type Participant struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Title string `json:"title" binding:"required,min=1,max=120"`
}

// JoinRoomRequest represents a join room request.
// UserID lets anonymous viewers identify themselves; an authenticated
// caller's identity takes precedence.
type JoinRoomRequest struct {
	Role   Role   `json:"role" binding:"required,oneof=owner viewer"`
	UserID *int64 `json:"user_id,omitempty" binding:"omitempty,min=1"`
}

// ViewerCountResponse is returned by the viewer count endpoint.
type ViewerCountResponse struct {
	RoomID      string `json:"room_id"`
	ViewerCount int    `json:"viewer_count"`
}
