package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	viewer := domain.Participant{UserID: 22, Role: domain.RoleViewer}
	require.NoError(t, f.registry.Register(ctx, "r1", "c1", viewer))

	roomID, err := f.registry.RoomOf(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", roomID)

	roomID, p, err := f.registry.Unregister(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "r1", roomID)
	assert.Equal(t, viewer, *p)

	assert.False(t, f.mr.Exists(f.keys.Socket("c1")))
	size, err := f.registry.Size(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Register(ctx, "r1", "c1", domain.Participant{UserID: 22, Role: domain.RoleViewer}))

	_, first, err := f.registry.Unregister(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, first)

	roomID, second, err := f.registry.Unregister(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Empty(t, roomID)

	_, unknown, err := f.registry.Unregister(ctx, "never-seen")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestRegistryUnregisterDropsStalePresence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.mr.Set(f.keys.Socket("c-stale"), "r1"))

	roomID, p, err := f.registry.Unregister(ctx, "c-stale")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, roomID)
	assert.False(t, f.mr.Exists(f.keys.Socket("c-stale")))
}

func TestRegistryViewerCountCountsViewersOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Register(ctx, "r1", "c-owner", domain.Participant{UserID: 10, Role: domain.RoleOwner}))
	require.NoError(t, f.registry.Register(ctx, "r1", "c-a", domain.Participant{UserID: 22, Role: domain.RoleViewer}))
	// Same user on a second connection counts twice.
	require.NoError(t, f.registry.Register(ctx, "r1", "c-b", domain.Participant{UserID: 22, Role: domain.RoleViewer}))
	f.mr.HSet(f.keys.Participants("r1"), "c-bad", "{not json")

	count, err := f.registry.ViewerCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	size, err := f.registry.Size(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 4, size)
}

func TestRegistryPresenceTTL(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registry.presenceTTL = 24 * time.Hour

	require.NoError(t, f.registry.Register(ctx, "r1", "c1", domain.Participant{UserID: 22, Role: domain.RoleViewer}))
	assert.Equal(t, 24*time.Hour, f.mr.TTL(f.keys.Socket("c1")))
}
