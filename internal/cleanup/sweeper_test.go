package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/archive"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/config"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/generator"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/store"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/storage"
)

type fixture struct {
	mr       *miniredis.Miniredis
	keys     store.Keys
	rooms    *repository.RedisRoomStore
	registry *repository.RedisParticipantRegistry
	sweeper  *Sweeper
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := store.NewRedisStoreFromClient(client)
	keys := store.NewKeys("live")
	f := &fixture{
		mr:       mr,
		keys:     keys,
		rooms:    repository.NewRedisRoomStore(s, keys, generator.NewULIDGenerator()),
		registry: repository.NewRedisParticipantRegistry(s, keys, 0),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sweeper = New(f.rooms, f.registry, config.CleanupConfig{Concurrency: 2})
	f.sweeper.now = func() time.Time { return f.now }
	return f
}

// activeRoom creates a room last updated idleFor before the fixture clock.
func (f *fixture) activeRoom(t *testing.T, idleFor time.Duration) *domain.Room {
	t.Helper()
	ctx := context.Background()
	room, err := f.rooms.Create(ctx, 10, "room")
	require.NoError(t, err)
	room.UpdatedAt = f.now.Add(-idleFor)
	require.NoError(t, f.rooms.Save(ctx, room))
	return room
}

// endedRoom creates a room that ended endedFor before the fixture clock.
func (f *fixture) endedRoom(t *testing.T, endedFor time.Duration) *domain.Room {
	t.Helper()
	room := f.activeRoom(t, endedFor)
	endedAt := f.now.Add(-endedFor)
	room.Status = domain.RoomStatusEnded
	room.EndedAt = &endedAt
	require.NoError(t, f.rooms.SaveEnded(context.Background(), room))
	return room
}

func (f *fixture) exists(t *testing.T, roomID string) bool {
	t.Helper()
	_, err := f.rooms.GetByID(context.Background(), roomID)
	if err == repository.ErrRoomNotFound {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestSweepReclaimsExpiredEndedRoom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	room := f.endedRoom(t, 25*time.Hour)
	// A registration that raced the end and left entries behind.
	require.NoError(t, f.registry.Register(ctx, room.ID, "c1", domain.Participant{UserID: 22, Role: domain.RoleViewer}))

	recent := f.endedRoom(t, time.Hour)

	report := f.sweeper.Sweep(ctx)
	assert.Equal(t, SweepReport{Scanned: 2, Reclaimed: 1}, report)

	assert.False(t, f.exists(t, room.ID))
	assert.True(t, f.exists(t, recent.ID))
	assert.False(t, f.mr.Exists(f.keys.Participants(room.ID)))
	assert.False(t, f.mr.Exists(f.keys.Socket("c1")))

	ids, err := f.rooms.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{recent.ID}, ids)
}

func TestSweepReclaimsIdleActiveRoom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	idle := f.activeRoom(t, 7*time.Hour)
	busy := f.activeRoom(t, 7*time.Hour)
	require.NoError(t, f.registry.Register(ctx, busy.ID, "c-owner", domain.Participant{UserID: 10, Role: domain.RoleOwner}))
	fresh := f.activeRoom(t, time.Hour)

	report := f.sweeper.Sweep(ctx)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Reclaimed)
	assert.Zero(t, report.Failed)

	assert.False(t, f.exists(t, idle.ID))
	assert.True(t, f.exists(t, busy.ID))
	assert.True(t, f.exists(t, fresh.ID))
}

func TestSweepHealsDanglingIndexEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.mr.SAdd(f.keys.RoomIndex(), "ls-ghost")
	require.NoError(t, err)

	report := f.sweeper.Sweep(ctx)
	assert.Equal(t, SweepReport{Scanned: 1, Healed: 1}, report)

	ids, err := f.rooms.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.mr.SAdd(f.keys.RoomIndex(), "ls-corrupt")
	require.NoError(t, err)
	require.NoError(t, f.mr.Set(f.keys.Room("ls-corrupt"), "{not json"))
	expired := f.endedRoom(t, 48*time.Hour)

	report := f.sweeper.Sweep(ctx)
	assert.Equal(t, SweepReport{Scanned: 2, Reclaimed: 1, Failed: 1}, report)
	assert.False(t, f.exists(t, expired.ID))
}

func TestSweepListFailure(t *testing.T) {
	f := setup(t)
	f.mr.SetError("LOADING")

	report := f.sweeper.Sweep(context.Background())
	assert.Equal(t, SweepReport{Failed: 1}, report)
}

func TestStartStop(t *testing.T) {
	f := setup(t)
	f.sweeper.cfg.Interval = 10 * time.Millisecond
	expired := f.endedRoom(t, 48*time.Hour)

	f.sweeper.Start(context.Background())
	require.Eventually(t, func() bool {
		return !f.mr.Exists(f.keys.Room(expired.ID))
	}, time.Second, 10*time.Millisecond)

	f.sweeper.Stop()
	f.sweeper.Stop()
	select {
	case <-f.sweeper.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	f := setup(t)

	assert.NotPanics(t, func() {
		f.sweeper.Stop()
		f.sweeper.Stop()
	})
	select {
	case <-f.sweeper.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed for a sweeper that never started")
	}

	// Starting after Stop is a no-op.
	f.sweeper.Start(context.Background())
}

func TestSweepArchivesBeforeReclaim(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	archiver := archive.New(local, nil)
	f.sweeper.SetArchiver(archiver)

	room := f.endedRoom(t, 25*time.Hour)

	report := f.sweeper.Sweep(ctx)
	assert.Equal(t, SweepReport{Scanned: 1, Reclaimed: 1}, report)
	assert.False(t, f.exists(t, room.ID))

	rec, err := archiver.Load(ctx, archive.Key(room))
	require.NoError(t, err)
	assert.Equal(t, room.ID, rec.Room.ID)
	assert.Equal(t, domain.RoomStatusEnded, rec.Room.Status)
	assert.Equal(t, "ended_retention_expired", rec.Reason)
}

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, *domain.Room, string) error {
	return errors.New("bucket unavailable")
}

func TestSweepKeepsRoomWhenArchiveFails(t *testing.T) {
	f := setup(t)
	f.sweeper.SetArchiver(failingArchiver{})

	room := f.endedRoom(t, 25*time.Hour)

	report := f.sweeper.Sweep(context.Background())
	assert.Equal(t, SweepReport{Scanned: 1, Failed: 1}, report)
	assert.True(t, f.exists(t, room.ID))
}
