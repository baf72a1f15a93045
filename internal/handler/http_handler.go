package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/service"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/response"
)

// Dispatcher delivers broadcasts produced by room operations.
type Dispatcher interface {
	Dispatch(ctx context.Context, broadcasts []domain.Broadcast) error
}

// Handler handles HTTP requests for live rooms.
type Handler struct {
	roomService    service.RoomService
	chat           repository.ChatRepository
	dispatcher     Dispatcher
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(roomService service.RoomService, chat repository.ChatRepository, dispatcher Dispatcher, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		roomService:    roomService,
		chat:           chat,
		dispatcher:     dispatcher,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/livestream")
	{
		rooms := api.Group("/rooms")
		{
			// Public routes
			rooms.GET("/:id", h.GetRoom)
			rooms.GET("/:id/viewers", h.GetViewerCount)
			rooms.GET("/:id/messages", h.ListMessages)
			rooms.POST("/:id/join", h.authMiddleware.OptionalAuth(), h.JoinRoom)

			// Protected routes
			rooms.POST("", h.authMiddleware.RequireAuth(), h.CreateRoom)
			rooms.POST("/:id/start", h.authMiddleware.RequireAuth(), h.StartRoom)
			rooms.POST("/:id/stop", h.authMiddleware.RequireAuth(), h.StopRoom)
		}
	}
}

// CreateRoom creates a new room owned by the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	upd, err := h.roomService.CreateRoom(ctx, userID, req.Title)
	if err != nil {
		h.writeError(c, err, "create room")
		return
	}
	dispatch(ctx, h.dispatcher, upd.Broadcasts)

	response.Created(c, upd.Room)
}

// JoinRoom validates a join and returns how to open the live connection.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind join room request")
		response.BadRequest(c, err.Error())
		return
	}

	requested := req.UserID
	if userID, ok := middleware.GetUserID(c); ok {
		requested = &userID
	} else if req.Role == domain.RoleOwner {
		response.Unauthorized(c, "authentication required for owner role")
		return
	}

	result, err := h.roomService.JoinRoom(ctx, c.Param("id"), req.Role, requested)
	if err != nil {
		h.writeError(c, err, "join room")
		return
	}

	response.Success(c, result)
}

// StartRoom marks the caller's room as streaming.
func (h *Handler) StartRoom(c *gin.Context) {
	h.transition(c, "start room", h.roomService.StartRoom)
}

// StopRoom ends the caller's room.
func (h *Handler) StopRoom(c *gin.Context) {
	h.transition(c, "stop room", h.roomService.StopRoom)
}

type transitionFunc func(ctx context.Context, roomID string, callerID int64) (*domain.RoomUpdate, error)

func (h *Handler) transition(c *gin.Context, op string, fn transitionFunc) {
	ctx := c.Request.Context()

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	upd, err := fn(ctx, c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err, op)
		return
	}
	dispatch(ctx, h.dispatcher, upd.Broadcasts)

	response.Success(c, upd.Room)
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get room")
		return
	}
	response.Success(c, room)
}

// GetViewerCount returns the live viewer count of a room.
func (h *Handler) GetViewerCount(c *gin.Context) {
	vc, err := h.roomService.GetViewerCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get viewer count")
		return
	}
	response.Success(c, vc)
}

// ListMessages returns the recent chat history of a room, oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")

	var req domain.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if _, err := h.roomService.GetRoom(ctx, roomID); err != nil {
		h.writeError(c, err, "list messages")
		return
	}

	messages, err := h.chat.ListByRoom(ctx, roomID, req.Limit)
	if err != nil {
		l = log.Ctx(log.WithRoom(ctx, roomID, ""))
		l.Error().Err(err).Msg("failed to list messages")
		response.InternalError(c, "failed to list messages")
		return
	}

	response.Success(c, gin.H{
		"room_id":  roomID,
		"messages": messages,
	})
}

// dispatch delivers broadcasts after a state change has been committed. The
// dispatcher logs each failed delivery; the caller's operation still succeeds.
func dispatch(ctx context.Context, d Dispatcher, broadcasts []domain.Broadcast) {
	if len(broadcasts) == 0 {
		return
	}
	_ = d.Dispatch(ctx, broadcasts)
}

func (h *Handler) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case service.IsRuleError(err):
		response.RuleViolation(c, err.Error())
	case errors.Is(err, service.ErrCreateRoomFailed):
		response.InternalError(c, err.Error())
	default:
		l := log.Ctx(log.WithRoom(c.Request.Context(), c.Param("id"), ""))
		l.Error().Err(err).Msgf("failed to %s", op)
		response.InternalError(c, "failed to "+op)
	}
}
