package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

type scopeKey struct{}

// scope records which ids the context logger already carries.
type scope struct {
	roomID       string
	connectionID string
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithRoom returns a context whose logger carries the room and connection ids.
// Empty values are skipped, and a field the logger already carries is kept
// as is, so callers at every layer can scope the context without repeating keys.
func WithRoom(ctx context.Context, roomID, connectionID string) context.Context {
	sc, _ := ctx.Value(scopeKey{}).(scope)
	lc := Ctx(ctx).With()
	added := false
	if roomID != "" && sc.roomID == "" {
		lc = lc.Str(FieldRoomID, roomID)
		sc.roomID = roomID
		added = true
	}
	if connectionID != "" && sc.connectionID == "" {
		lc = lc.Str(FieldConnectionID, connectionID)
		sc.connectionID = connectionID
		added = true
	}
	if !added {
		return ctx
	}
	ctx = context.WithValue(ctx, scopeKey{}, sc)
	return WithLogger(ctx, lc.Logger())
}
