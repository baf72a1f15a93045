package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/storage"
)

const (
	keyPrefix   = "rooms/"
	contentType = "application/json"
	// historyLimit matches the largest page the chat history endpoint serves.
	historyLimit = 200
)

// ErrNotArchived is returned by Load for a room that was never archived.
var ErrNotArchived = errors.New("room not archived")

// Record is the snapshot written for a reclaimed room.
type Record struct {
	Room       domain.Room          `json:"room"`
	Reason     string               `json:"reason"`
	ArchivedAt time.Time            `json:"archived_at"`
	Messages   []domain.ChatMessage `json:"messages"`
}

// Archiver writes room snapshots to object storage before they are reclaimed.
type Archiver struct {
	storage storage.Storage
	chat    repository.ChatRepository
	now     func() time.Time
}

// New creates a new Archiver. chat may be nil, in which case no history is kept.
func New(s storage.Storage, chat repository.ChatRepository) *Archiver {
	return &Archiver{
		storage: s,
		chat:    chat,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the object key for a room, partitioned by creation day.
func Key(room *domain.Room) string {
	return KeyFor(room.CreatedAt, room.ID)
}

// KeyFor returns the object key of the room created on day.
func KeyFor(day time.Time, roomID string) string {
	return fmt.Sprintf("%s%s/%s.json", keyPrefix, DayPrefix(day), roomID)
}

// DayPrefix is the key partition for day, as accepted by Keys.
func DayPrefix(day time.Time) string {
	return day.UTC().Format("2006/01/02")
}

// Archive writes the room and its recent chat history.
func (a *Archiver) Archive(ctx context.Context, room *domain.Room, reason string) error {
	rec := Record{
		Room:       *room,
		Reason:     reason,
		ArchivedAt: a.now(),
		Messages:   []domain.ChatMessage{},
	}

	if a.chat != nil {
		msgs, err := a.chat.ListByRoom(ctx, room.ID, historyLimit)
		if err != nil {
			return fmt.Errorf("load chat history: %w", err)
		}
		rec.Messages = msgs
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}

	if err := a.storage.Write(ctx, Key(room), bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("write archive %s: %w", room.ID, err)
	}
	return nil
}

// Load reads back an archived room by key.
func (a *Archiver) Load(ctx context.Context, key string) (*Record, error) {
	rc, err := a.storage.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rec Record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", key, err)
	}
	return &rec, nil
}

// Keys lists archived room keys under an optional day prefix such as "2026/10".
func (a *Archiver) Keys(ctx context.Context, day string) ([]string, error) {
	return a.storage.List(ctx, keyPrefix+day)
}
