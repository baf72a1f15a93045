package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestRedisStoreAtomicAppliesAllWrites(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()
	keys := NewKeys("")

	err := s.Atomic(ctx, func(b Batch) error {
		b.Set(keys.Room("r1"), `{"id":"r1"}`, 0)
		b.SAdd(keys.RoomIndex(), "r1")
		b.HSet(keys.Participants("r1"), "c1", `{"user_id":1}`)
		b.Set(keys.Socket("c1"), "r1", time.Hour)
		return nil
	})
	require.NoError(t, err)

	v, err := s.Get(ctx, keys.Room("r1"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"r1"}`, v)

	members, err := s.SMembers(ctx, keys.RoomIndex())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, members)

	n, err := s.HLen(ctx, keys.Participants("r1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Equal(t, time.Hour, mr.TTL(keys.Socket("c1")))
	assert.Zero(t, mr.TTL(keys.Room("r1")))
}

func TestRedisStoreAtomicAbortsOnCallbackError(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(b Batch) error {
		b.Set("live:room:r1", "x", 0)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("live:room:r1"))
}

func TestRedisStoreAtomicBackendFailure(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	mr.SetError("LOADING redis is loading")
	err := s.Atomic(ctx, func(b Batch) error {
		b.Set("live:room:r1", "x", 0)
		b.SAdd("live:rooms", "r1")
		return nil
	})
	assert.Error(t, err)

	mr.SetError("")
	assert.False(t, mr.Exists("live:room:r1"))
	assert.False(t, mr.Exists("live:rooms"))
}

func TestRedisStoreMissingKeys(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "live:room:nope")
	assert.ErrorIs(t, err, ErrNil)

	_, err = s.HGet(ctx, "live:room:nope:participants", "c1")
	assert.ErrorIs(t, err, ErrNil)

	all, err := s.HGetAll(ctx, "live:room:nope:participants")
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := s.HLen(ctx, "live:room:nope:participants")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStoreEmptyBatchIsNoop(t *testing.T) {
	s, _ := setupStore(t)
	assert.NoError(t, s.Atomic(context.Background(), func(b Batch) error {
		b.Del()
		b.SRem("live:rooms")
		return nil
	}))
}

func TestKeysLayout(t *testing.T) {
	k := NewKeys("live")
	assert.Equal(t, "live:room:abc", k.Room("abc"))
	assert.Equal(t, "live:room:abc:participants", k.Participants("abc"))
	assert.Equal(t, "live:socket:c-1", k.Socket("c-1"))
	assert.Equal(t, "live:rooms", k.RoomIndex())
	assert.Equal(t, DefaultPrefix, NewKeys("").Prefix())
}
