package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
)

// RoomService owns the live room state machine. Rooms start ACTIVE and end
// in ENDED, which is terminal. State-changing operations return the room
// snapshot together with the broadcasts the transport layer must deliver.
type RoomService interface {
	CreateRoom(ctx context.Context, ownerID int64, title string) (*domain.RoomUpdate, error)
	JoinRoom(ctx context.Context, roomID string, role domain.Role, requestedUserID *int64) (*domain.JoinResult, error)
	StartRoom(ctx context.Context, roomID string, callerID int64) (*domain.RoomUpdate, error)
	StopRoom(ctx context.Context, roomID string, callerID int64) (*domain.RoomUpdate, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	GetViewerCount(ctx context.Context, roomID string) (*domain.ViewerCountResponse, error)

	// RegisterPresence records a live connection in a room.
	RegisterPresence(ctx context.Context, roomID, connectionID string, userID int64, role domain.Role) (*domain.RoomUpdate, error)
	// UnregisterPresence removes a connection. It returns nil when the
	// connection was not registered.
	UnregisterPresence(ctx context.Context, connectionID string) (*domain.PresenceRemoval, error)
}
