package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/store"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// RedisParticipantRegistry implements ParticipantRegistry on the shared store.
// Entries live in a per-room hash keyed by connection id; the presence index
// maps each connection back to its room.
type RedisParticipantRegistry struct {
	store       store.Store
	keys        store.Keys
	presenceTTL time.Duration
}

// NewRedisParticipantRegistry creates a registry. presenceTTL bounds how long
// a presence index entry survives if its connection is never unregistered;
// zero disables expiry.
func NewRedisParticipantRegistry(s store.Store, keys store.Keys, presenceTTL time.Duration) *RedisParticipantRegistry {
	return &RedisParticipantRegistry{
		store:       s,
		keys:        keys,
		presenceTTL: presenceTTL,
	}
}

func (r *RedisParticipantRegistry) Register(ctx context.Context, roomID, connectionID string, p domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return r.store.Atomic(ctx, func(b store.Batch) error {
		b.HSet(r.keys.Participants(roomID), connectionID, string(data))
		b.Set(r.keys.Socket(connectionID), roomID, r.presenceTTL)
		return nil
	})
}

func (r *RedisParticipantRegistry) Unregister(ctx context.Context, connectionID string) (string, *domain.Participant, error) {
	l := log.Ctx(ctx)

	roomID, err := r.RoomOf(ctx, connectionID)
	if err != nil || roomID == "" {
		return "", nil, err
	}

	data, err := r.store.HGet(ctx, r.keys.Participants(roomID), connectionID)
	if errors.Is(err, store.ErrNil) {
		// Presence entry without a registry entry: the room was ended or
		// reclaimed in between. Drop the stale mapping.
		l = log.Ctx(log.WithRoom(ctx, roomID, connectionID))
		l.Debug().Msg("dropping stale presence entry")
		err = r.store.Atomic(ctx, func(b store.Batch) error {
			b.Del(r.keys.Socket(connectionID))
			return nil
		})
		return "", nil, err
	}
	if err != nil {
		return "", nil, err
	}

	var p domain.Participant
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return "", nil, fmt.Errorf("decode participant %s: %w", connectionID, err)
	}

	err = r.store.Atomic(ctx, func(b store.Batch) error {
		b.HDel(r.keys.Participants(roomID), connectionID)
		b.Del(r.keys.Socket(connectionID))
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return roomID, &p, nil
}

func (r *RedisParticipantRegistry) RoomOf(ctx context.Context, connectionID string) (string, error) {
	roomID, err := r.store.Get(ctx, r.keys.Socket(connectionID))
	if errors.Is(err, store.ErrNil) {
		return "", nil
	}
	return roomID, err
}

// ViewerCount counts viewer entries. Undecodable entries are skipped.
func (r *RedisParticipantRegistry) ViewerCount(ctx context.Context, roomID string) (int, error) {
	entries, err := r.store.HGetAll(ctx, r.keys.Participants(roomID))
	if err != nil {
		return 0, err
	}

	count := 0
	for connID, data := range entries {
		var p domain.Participant
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			l := log.Ctx(log.WithRoom(ctx, roomID, ""))
			l.Warn().Err(err).Str("entry", connID).Msg("skipping undecodable participant")
			continue
		}
		if p.Role == domain.RoleViewer {
			count++
		}
	}
	return count, nil
}

func (r *RedisParticipantRegistry) Size(ctx context.Context, roomID string) (int, error) {
	n, err := r.store.HLen(ctx, r.keys.Participants(roomID))
	return int(n), err
}

