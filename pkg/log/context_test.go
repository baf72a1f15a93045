package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func logLine(ctx context.Context) {
	l := Ctx(ctx)
	l.Info().Msg("x")
}

func TestWithRoomAddsEachFieldOnce(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))

	ctx = WithRoom(ctx, "", "conn-1")
	ctx = WithRoom(ctx, "ls-1", "")
	ctx = WithRoom(ctx, "ls-1", "conn-1")
	logLine(ctx)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"room_id":"ls-1"`), out)
	assert.Equal(t, 1, strings.Count(out, `"connection_id":"conn-1"`), out)
	assert.Equal(t, 1, strings.Count(out, `"room_id"`), out)
}

func TestWithRoomKeepsFirstRoom(t *testing.T) {
	var buf bytes.Buffer
	base := WithRoom(WithLogger(context.Background(), zerolog.New(&buf)), "", "conn-1")

	scoped := WithRoom(base, "ls-1", "")
	logLine(WithRoom(scoped, "ls-2", ""))
	assert.Equal(t, 1, strings.Count(buf.String(), `"room_id"`))
	assert.Contains(t, buf.String(), `"room_id":"ls-1"`)

	// The connection-only base can still be scoped to another room.
	buf.Reset()
	logLine(WithRoom(base, "ls-2", ""))
	assert.Contains(t, buf.String(), `"room_id":"ls-2"`)
	assert.Equal(t, 1, strings.Count(buf.String(), `"connection_id"`))
}

func TestWithRoomWithoutIDsReturnsSameContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRoom(ctx, "", ""))
}
