package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// RoomStore persists room records and the global room index.
type RoomStore interface {
	// Create mints an id and writes an active room plus its index entry atomically.
	Create(ctx context.Context, ownerID int64, title string) (*domain.Room, error)
	GetByID(ctx context.Context, roomID string) (*domain.Room, error)
	// Save overwrites the record unconditionally; the last writer wins.
	Save(ctx context.Context, room *domain.Room) error
	// SaveEnded writes an ended room and clears its participant registry,
	// including the presence index entries, in one atomic batch.
	SaveEnded(ctx context.Context, room *domain.Room) error
	// Remove deletes the record, registry, presence entries and index entry atomically.
	Remove(ctx context.Context, roomID string) error
	ListIDs(ctx context.Context) ([]string, error)
	// DropIndexEntry removes a room id whose record no longer exists.
	DropIndexEntry(ctx context.Context, roomID string) error
}

// ParticipantRegistry tracks which connections are present in which room.
type ParticipantRegistry interface {
	// Register adds the registry entry and its presence index entry atomically.
	Register(ctx context.Context, roomID, connectionID string, p domain.Participant) error
	// Unregister removes a connection. It returns a nil participant when the
	// connection is unknown, so repeated calls are harmless.
	Unregister(ctx context.Context, connectionID string) (roomID string, p *domain.Participant, err error)
	// RoomOf resolves the presence index; "" when the connection is unknown.
	RoomOf(ctx context.Context, connectionID string) (string, error)
	ViewerCount(ctx context.Context, roomID string) (int, error)
	Size(ctx context.Context, roomID string) (int, error)
}

// ChatRepository persists chat comments and product showcases.
type ChatRepository interface {
	CreateComment(ctx context.Context, roomID string, userID int64, message string) (*domain.ChatMessage, error)
	// ShareProduct records the product mention and its chat entry in one transaction.
	ShareProduct(ctx context.Context, roomID string, sellerID int64, product domain.Product) (*domain.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
}
