package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/archive"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/storage"
)

func newArchiveServer(t *testing.T) (*testServer, *archive.Archiver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	archiver := archive.New(local, nil)

	tokens, err := jwt.NewManager(time.Hour, "test")
	require.NoError(t, err)

	engine := gin.New()
	NewArchiveHandler(archiver, middleware.NewAuthMiddleware(tokens)).RegisterRoutes(engine)
	return &testServer{t: t, engine: engine, tokens: tokens}, archiver
}

func TestArchiveHandler(t *testing.T) {
	ts, archiver := newArchiveServer(t)

	endedAt := time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC)
	room := &domain.Room{
		ID:        "ls-archived",
		Title:     "morning sale",
		OwnerID:   ownerID,
		Status:    domain.RoomStatusEnded,
		CreatedAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		UpdatedAt: endedAt,
		EndedAt:   &endedAt,
	}
	require.NoError(t, archiver.Archive(context.Background(), room, "ended_retention_expired"))

	code, _ := ts.do(http.MethodGet, "/api/v1/livestream/archives?date=2026-10-14", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(http.MethodGet, "/api/v1/livestream/archives?date=14-10-2026", ownerID, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := ts.do(http.MethodGet, "/api/v1/livestream/archives?date=2026-10-14", ownerID, nil)
	require.Equal(t, http.StatusOK, code)
	var listed struct {
		Date string   `json:"date"`
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &listed))
	assert.Equal(t, "2026-10-14", listed.Date)
	assert.Equal(t, []string{archive.Key(room)}, listed.Keys)

	code, resp = ts.do(http.MethodGet, "/api/v1/livestream/archives?date=2026-10-15", ownerID, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &listed))
	assert.Empty(t, listed.Keys)

	code, resp = ts.do(http.MethodGet, "/api/v1/livestream/archives/2026-10-14/ls-archived", ownerID, nil)
	require.Equal(t, http.StatusOK, code)
	var rec archive.Record
	require.NoError(t, json.Unmarshal(resp.Data, &rec))
	assert.Equal(t, "morning sale", rec.Room.Title)
	assert.Equal(t, "ended_retention_expired", rec.Reason)

	code, _ = ts.do(http.MethodGet, "/api/v1/livestream/archives/2026-10-14/ls-archived", viewerID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(http.MethodGet, "/api/v1/livestream/archives/2026-10-14/ls-none", ownerID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(http.MethodGet, "/api/v1/livestream/archives/yesterday/ls-archived", ownerID, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
