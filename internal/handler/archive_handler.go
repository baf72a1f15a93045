package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/archive"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/response"
)

const dateLayout = "2006-01-02"

// ArchiveReader reads room snapshots written by the sweeper.
type ArchiveReader interface {
	Keys(ctx context.Context, day string) ([]string, error)
	Load(ctx context.Context, key string) (*archive.Record, error)
}

// ArchiveHandler serves archived rooms to their owners.
type ArchiveHandler struct {
	archives       ArchiveReader
	authMiddleware *middleware.AuthMiddleware
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(archives ArchiveReader, authMiddleware *middleware.AuthMiddleware) *ArchiveHandler {
	return &ArchiveHandler{
		archives:       archives,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the archive routes.
func (h *ArchiveHandler) RegisterRoutes(r *gin.Engine) {
	archives := r.Group("/api/v1/livestream/archives", h.authMiddleware.RequireAuth())
	{
		archives.GET("", h.ListArchives)
		archives.GET("/:date/:id", h.GetArchive)
	}
}

// ListArchives returns the archive keys for rooms created on ?date=YYYY-MM-DD.
func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	ctx := c.Request.Context()

	day, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}

	keys, err := h.archives.Keys(ctx, archive.DayPrefix(day))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("date", c.Query("date")).Msg("failed to list archives")
		response.InternalError(c, "failed to list archives")
		return
	}
	if keys == nil {
		keys = []string{}
	}

	response.Success(c, gin.H{
		"date": day.Format(dateLayout),
		"keys": keys,
	})
}

// GetArchive returns one archived room. Only the room's owner may read it.
func (h *ArchiveHandler) GetArchive(c *gin.Context) {
	ctx := log.WithRoom(c.Request.Context(), c.Param("id"), "")

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	day, err := time.Parse(dateLayout, c.Param("date"))
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}

	rec, err := h.archives.Load(ctx, archive.KeyFor(day, c.Param("id")))
	if errors.Is(err, archive.ErrNotArchived) {
		response.NotFound(c, "archive not found")
		return
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to load archive")
		response.InternalError(c, "failed to load archive")
		return
	}
	// Other users' archives are reported as missing.
	if rec.Room.OwnerID != userID {
		response.NotFound(c, "archive not found")
		return
	}

	response.Success(c, rec)
}
