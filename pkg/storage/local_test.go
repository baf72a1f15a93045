package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "rooms/2026/10/16/a.json", strings.NewReader(`{"id":"a"}`), -1, "application/json"))
	require.NoError(t, s.Write(ctx, "rooms/2026/10/17/b.json", strings.NewReader(`{"id":"b"}`), -1, "application/json"))

	ok, err := s.Exists(ctx, "rooms/2026/10/16/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Read(ctx, "rooms/2026/10/16/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(data))

	keys, err := s.List(ctx, "rooms/2026/10/16")
	require.NoError(t, err)
	assert.Equal(t, []string{"rooms/2026/10/16/a.json"}, keys)

	keys, err = s.List(ctx, "rooms/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestLocalStorageOverwrite(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "k.json", strings.NewReader("first"), 5, ""))
	require.NoError(t, s.Write(ctx, "k.json", strings.NewReader("second"), 6, ""))

	rc, err := s.Read(ctx, "k.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalStorageMissingKey(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Read(ctx, "nope.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	ok, err := s.Exists(ctx, "nope.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../outside.json", "a/../../outside.json", "/etc/passwd", ""} {
		err := s.Write(ctx, key, strings.NewReader("x"), 1, "")
		assert.Error(t, err, key)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"})
	assert.Error(t, err)
}
