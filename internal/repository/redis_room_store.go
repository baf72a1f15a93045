package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/generator"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/store"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// RedisRoomStore implements RoomStore on the shared store.
type RedisRoomStore struct {
	store store.Store
	keys  store.Keys
	ids   generator.IDGenerator
	now   func() time.Time
}

// NewRedisRoomStore creates a room store.
func NewRedisRoomStore(s store.Store, keys store.Keys, ids generator.IDGenerator) *RedisRoomStore {
	return &RedisRoomStore{
		store: s,
		keys:  keys,
		ids:   ids,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new active room.
func (r *RedisRoomStore) Create(ctx context.Context, ownerID int64, title string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	id, err := r.ids.Generate()
	if err != nil {
		return nil, err
	}

	now := r.now()
	room := &domain.Room{
		ID:        id,
		Title:     title,
		OwnerID:   ownerID,
		Status:    domain.RoomStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}

	err = r.store.Atomic(ctx, func(b store.Batch) error {
		b.Set(r.keys.Room(id), string(data), 0)
		b.SAdd(r.keys.RoomIndex(), id)
		return nil
	})
	l = log.Ctx(log.WithRoom(ctx, id, ""))
	if err != nil {
		l.Error().Err(err).Msg("failed to write room record")
		return nil, fmt.Errorf("create room %s: %w", id, err)
	}

	l.Debug().Msg("room created in store")
	return room, nil
}

// GetByID retrieves a room by ID.
func (r *RedisRoomStore) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	data, err := r.store.Get(ctx, r.keys.Room(roomID))
	if err != nil {
		if errors.Is(err, store.ErrNil) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

// Save overwrites the room record.
func (r *RedisRoomStore) Save(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return r.store.Atomic(ctx, func(b store.Batch) error {
		b.Set(r.keys.Room(room.ID), string(data), 0)
		return nil
	})
}

// SaveEnded persists an ended room and wipes its registry.
func (r *RedisRoomStore) SaveEnded(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	conns, err := r.connections(ctx, room.ID)
	if err != nil {
		return err
	}

	return r.store.Atomic(ctx, func(b store.Batch) error {
		b.Set(r.keys.Room(room.ID), string(data), 0)
		b.Del(r.keys.Participants(room.ID))
		b.Del(r.socketKeys(conns)...)
		return nil
	})
}

// Remove deletes every trace of a room.
func (r *RedisRoomStore) Remove(ctx context.Context, roomID string) error {
	conns, err := r.connections(ctx, roomID)
	if err != nil {
		return err
	}

	return r.store.Atomic(ctx, func(b store.Batch) error {
		b.Del(r.keys.Room(roomID), r.keys.Participants(roomID))
		b.Del(r.socketKeys(conns)...)
		b.SRem(r.keys.RoomIndex(), roomID)
		return nil
	})
}

// ListIDs returns every tracked room id.
func (r *RedisRoomStore) ListIDs(ctx context.Context) ([]string, error) {
	return r.store.SMembers(ctx, r.keys.RoomIndex())
}

// DropIndexEntry removes a stale index entry.
func (r *RedisRoomStore) DropIndexEntry(ctx context.Context, roomID string) error {
	return r.store.SRem(ctx, r.keys.RoomIndex(), roomID)
}

// connections lists the connection ids registered in a room. A presence
// entry written after this read is left behind; Unregister heals it.
func (r *RedisRoomStore) connections(ctx context.Context, roomID string) ([]string, error) {
	entries, err := r.store.HGetAll(ctx, r.keys.Participants(roomID))
	if err != nil {
		return nil, err
	}
	conns := make([]string, 0, len(entries))
	for connID := range entries {
		conns = append(conns, connID)
	}
	return conns, nil
}

func (r *RedisRoomStore) socketKeys(conns []string) []string {
	keys := make([]string, len(conns))
	for i, c := range conns {
		keys[i] = r.keys.Socket(c)
	}
	return keys
}
