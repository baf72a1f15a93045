package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/audit"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/config"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/hub"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/middleware"
)

const maxCommentLength = 500

var errNotInRoom = errors.New("not in a room")

// inputError rejects a malformed message; its text is shown to the client.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func invalid(msg string) error {
	return &inputError{msg: msg}
}

// WSHandler handles live connections: it maps socket events onto presence
// registration and relays chat traffic.
type WSHandler struct {
	hub            *hub.Hub
	roomService    service.RoomService
	chat           repository.ChatRepository
	dispatcher     Dispatcher
	authMiddleware *middleware.AuthMiddleware
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, roomService service.RoomService, chat repository.ChatRepository, dispatcher Dispatcher, authMiddleware *middleware.AuthMiddleware, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:            h,
		roomService:    roomService,
		chat:           chat,
		dispatcher:     dispatcher,
		authMiddleware: authMiddleware,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r *gin.Engine, path string) {
	r.GET(path, h.authMiddleware.OptionalAuth(), h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and starts its pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// The request context ends when this handler returns; keep its logger.
	base := context.WithoutCancel(c.Request.Context())
	l := pkglog.Ctx(base)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New().String()
	session := domain.NewSession(connID)
	if userID, ok := middleware.GetUserID(c); ok {
		session.Authenticate(userID, middleware.GetUsername(c))
	}

	client := hub.NewClient(connID, h.hub, conn, session)
	base = pkglog.WithRoom(base, "", connID)

	client.SetDisconnectHandler(func(cl *hub.Client) {
		if err := h.leave(base, cl); err != nil && !errors.Is(err, errNotInRoom) {
			l := pkglog.Ctx(base)
			l.Error().Err(err).Msg("disconnect cleanup failed")
		}
	})

	h.hub.Register(client)
	client.SendMessage(domain.ConnectedMessage{Type: domain.MsgTypeConnected, ConnectionID: connID})
	client.Start(func(cl *hub.Client, message []byte) {
		h.handleMessage(base, cl, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage("", "invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(base.Type, "invalid join_room message"))
			return
		}
		err = h.join(ctx, client, msg)

	case domain.MsgTypeLeaveRoom:
		roomID, _, _ := client.Session.CurrentRoom()
		if err = h.leave(ctx, client); err == nil {
			client.SendMessage(domain.NewAckMessage(base.Type, roomID))
		}

	case domain.MsgTypeSendComment:
		var msg domain.SendCommentMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(base.Type, "invalid send_comment message"))
			return
		}
		err = h.comment(ctx, client, msg)

	case domain.MsgTypeShareProduct:
		var msg domain.ShareProductMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(base.Type, "invalid share_product message"))
			return
		}
		err = h.shareProduct(ctx, client, msg)

	case domain.MsgTypeStreamSignal:
		var msg domain.StreamSignalMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(base.Type, "invalid stream_signal message"))
			return
		}
		err = h.signal(ctx, client, msg)

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(base.Type, "unknown message type"))
	}

	if err != nil {
		if roomID, _, _ := client.Session.CurrentRoom(); roomID != "" {
			ctx = pkglog.WithRoom(ctx, roomID, "")
		}
		client.SendMessage(domain.NewErrorMessage(base.Type, clientMessage(ctx, base.Type, err)))
	}
}

// join registers the connection in a room. The target room is validated
// before the connection leaves its previous one; joining the room it is
// already in with the same role refreshes its entry in place.
func (h *WSHandler) join(ctx context.Context, client *hub.Client, msg domain.JoinRoomMessage) error {
	if msg.RoomID == "" {
		return invalid("room_id is required")
	}
	if msg.Role == domain.RoleOwner && !client.Session.IsAuthenticated() {
		return invalid("authentication required for owner role")
	}

	roomCtx := pkglog.WithRoom(ctx, msg.RoomID, "")
	identity := client.Session.Identity(msg.UserID)
	if _, err := h.roomService.JoinRoom(roomCtx, msg.RoomID, msg.Role, identity); err != nil {
		return err
	}

	current, currentRole, _ := client.Session.CurrentRoom()
	rejoin := current == msg.RoomID && currentRole == msg.Role
	if current != "" && !rejoin {
		if err := h.leave(ctx, client); err != nil && !errors.Is(err, errNotInRoom) {
			return err
		}
	}

	var userID int64
	if identity != nil {
		userID = *identity
	}

	h.hub.JoinRoom(client, msg.RoomID)
	upd, err := h.roomService.RegisterPresence(roomCtx, msg.RoomID, client.ID, userID, msg.Role)
	if err != nil {
		if !rejoin {
			h.hub.LeaveRoom(client, msg.RoomID)
		}
		return err
	}
	client.Session.JoinRoom(msg.RoomID, msg.Role, userID)

	client.SendMessage(domain.NewAckMessage(domain.MsgTypeJoinRoom, msg.RoomID))
	dispatch(roomCtx, h.dispatcher, upd.Broadcasts)
	return nil
}

// leave unregisters the connection from its current room.
func (h *WSHandler) leave(ctx context.Context, client *hub.Client) error {
	roomID := client.Session.LeaveRoom()
	if roomID == "" {
		return errNotInRoom
	}
	ctx = pkglog.WithRoom(ctx, roomID, "")
	h.hub.LeaveRoom(client, roomID)

	removal, err := h.roomService.UnregisterPresence(ctx, client.ID)
	if err != nil {
		return err
	}
	if removal != nil {
		dispatch(ctx, h.dispatcher, removal.Broadcasts)
	}
	return nil
}

func (h *WSHandler) comment(ctx context.Context, client *hub.Client, msg domain.SendCommentMessage) error {
	roomID, _, userID := client.Session.CurrentRoom()
	if roomID == "" {
		return errNotInRoom
	}
	ctx = pkglog.WithRoom(ctx, roomID, "")

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return invalid("message is required")
	}
	if len([]rune(text)) > maxCommentLength {
		return invalid("message is too long")
	}

	saved, err := h.chat.CreateComment(ctx, roomID, userID, text)
	if err != nil {
		return err
	}

	dispatch(ctx, h.dispatcher, []domain.Broadcast{
		domain.ToRoom(roomID, domain.EventCommentCreated, domain.CommentPayload{
			RoomID:    roomID,
			UserID:    userID,
			Message:   saved.Message,
			CreatedAt: saved.CreatedAt,
		}),
	})
	return nil
}

func (h *WSHandler) shareProduct(ctx context.Context, client *hub.Client, msg domain.ShareProductMessage) error {
	roomID, role, userID := client.Session.CurrentRoom()
	if roomID == "" {
		return errNotInRoom
	}
	if role != domain.RoleOwner {
		return service.ErrNotOwner
	}
	ctx = pkglog.WithRoom(ctx, roomID, "")
	if msg.Product.ID <= 0 || strings.TrimSpace(msg.Product.Title) == "" {
		return invalid("product id and title are required")
	}

	saved, err := h.chat.ShareProduct(ctx, roomID, userID, msg.Product)
	if err != nil {
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionShareProduct, userID, roomID, msg.Product.Title, "product shared")

	dispatch(ctx, h.dispatcher, []domain.Broadcast{
		domain.ToRoom(roomID, domain.EventProductShared, domain.ProductSharedPayload{
			RoomID:    roomID,
			UserID:    userID,
			Product:   msg.Product,
			CreatedAt: saved.CreatedAt,
		}),
	})
	return nil
}

func (h *WSHandler) signal(ctx context.Context, client *hub.Client, msg domain.StreamSignalMessage) error {
	roomID, _, userID := client.Session.CurrentRoom()
	if roomID == "" {
		return errNotInRoom
	}
	if len(msg.Payload) == 0 {
		return invalid("payload is required")
	}

	dispatch(pkglog.WithRoom(ctx, roomID, ""), h.dispatcher, []domain.Broadcast{
		domain.ToRoom(roomID, domain.EventStreamSignal, domain.StreamSignalPayload{
			RoomID:       roomID,
			FromUserID:   userID,
			ToUserID:     msg.ToUserID,
			Payload:      msg.Payload,
			ConnectionID: client.ID,
		}),
	})
	return nil
}

// clientMessage maps an error to the text sent back on the socket.
func clientMessage(ctx context.Context, msgType string, err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return "room not found"
	case service.IsRuleError(err):
		return err.Error()
	case errors.Is(err, errNotInRoom):
		return err.Error()
	}

	var inputErr *inputError
	if errors.As(err, &inputErr) {
		return inputErr.Error()
	}

	l := pkglog.Ctx(ctx)
	l.Error().Err(err).Str("type", msgType).Msg("failed to handle message")
	return "internal error"
}
