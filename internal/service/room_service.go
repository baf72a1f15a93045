package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/audit"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/pubsub"
)

// Config holds room service configuration.
type Config struct {
	// WSEndpoint is the path clients open their live connection on.
	WSEndpoint string
	// ChannelPrefix namespaces the room broadcast channels.
	ChannelPrefix string
}

// roomServiceImpl implements RoomService.
//
// Read-modify-write paths (start, stop, presence count refresh) are not
// transactional: concurrent writers on the same room overwrite each other
// and the last save wins. Multi-key writes are atomic in the store.
type roomServiceImpl struct {
	rooms    repository.RoomStore
	registry repository.ParticipantRegistry
	cfg      Config
	sf       singleflight.Group
	now      func() time.Time
}

// NewRoomService creates a new room service.
func NewRoomService(rooms repository.RoomStore, registry repository.ParticipantRegistry, cfg Config) RoomService {
	return newRoomService(rooms, registry, cfg)
}

func newRoomService(rooms repository.RoomStore, registry repository.ParticipantRegistry, cfg Config) *roomServiceImpl {
	if cfg.WSEndpoint == "" {
		cfg.WSEndpoint = "/ws"
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "live"
	}
	return &roomServiceImpl{
		rooms:    rooms,
		registry: registry,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom creates a new active room owned by ownerID.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, ownerID int64, title string) (*domain.RoomUpdate, error) {
	l := log.Ctx(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	room, err := s.rooms.Create(ctx, ownerID, title)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, ownerID).Msg("failed to create room")
		return nil, ErrCreateRoomFailed
	}

	audit.Log(ctx, audit.ActionCreateRoom, ownerID, room.ID, "room created")
	return &domain.RoomUpdate{Room: room}, nil
}

// JoinRoom validates a join request and tells the client how to connect.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, roomID string, role domain.Role, requestedUserID *int64) (*domain.JoinResult, error) {
	room, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsEnded() {
		return nil, ErrRoomEnded
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role == domain.RoleOwner && (requestedUserID == nil || *requestedUserID != room.OwnerID) {
		return nil, ErrNotOwner
	}

	if err := s.refreshViewerCount(ctx, room); err != nil {
		return nil, err
	}

	return &domain.JoinResult{
		Room: room,
		Descriptor: domain.JoinDescriptor{
			Endpoint: s.cfg.WSEndpoint,
			Channel:  pubsub.RoomEventsChannel(s.cfg.ChannelPrefix, room.ID),
			Event:    domain.EventJoinRoom,
			Payload: domain.JoinPayload{
				RoomID: room.ID,
				Role:   role,
				UserID: requestedUserID,
			},
		},
	}, nil
}

// StartRoom marks the room as streaming.
func (s *roomServiceImpl) StartRoom(ctx context.Context, roomID string, callerID int64) (*domain.RoomUpdate, error) {
	room, err := s.requireOwnedLiveRoom(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}

	if err := s.refreshViewerCount(ctx, room); err != nil {
		return nil, err
	}
	room.IsStreaming = true
	room.UpdatedAt = s.now()

	if err := s.rooms.Save(ctx, room); err != nil {
		return nil, fmt.Errorf("save room %s: %w", room.ID, err)
	}

	audit.Log(ctx, audit.ActionStartRoom, callerID, room.ID, "stream started")
	return &domain.RoomUpdate{
		Room: room,
		Broadcasts: []domain.Broadcast{
			domain.ToRoom(room.ID, domain.EventStreamStarted, domain.StreamStartedPayload{
				RoomID:      room.ID,
				IsStreaming: true,
				StartedAt:   room.UpdatedAt,
			}),
		},
	}, nil
}

// StopRoom ends the room on the owner's request.
func (s *roomServiceImpl) StopRoom(ctx context.Context, roomID string, callerID int64) (*domain.RoomUpdate, error) {
	room, err := s.requireOwnedLiveRoom(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}

	broadcasts, err := s.end(ctx, room, domain.EndReasonOwnerStopped)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionStopRoom, callerID, room.ID, "room stopped by owner")
	return &domain.RoomUpdate{Room: room, Broadcasts: broadcasts}, nil
}

// GetRoom returns the room with a freshly computed viewer count.
// Concurrent reads of the same room share one store round trip.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	v, err, _ := s.sf.Do("room:"+roomID, func() (interface{}, error) {
		room, err := s.requireRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := s.refreshViewerCount(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	})
	if err != nil {
		return nil, err
	}

	room := *v.(*domain.Room)
	return &room, nil
}

// GetViewerCount returns the live viewer count of a room.
func (s *roomServiceImpl) GetViewerCount(ctx context.Context, roomID string) (*domain.ViewerCountResponse, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &domain.ViewerCountResponse{RoomID: room.ID, ViewerCount: room.ViewerCount}, nil
}

// RegisterPresence adds a live connection to a room.
func (s *roomServiceImpl) RegisterPresence(ctx context.Context, roomID, connectionID string, userID int64, role domain.Role) (*domain.RoomUpdate, error) {
	ctx = log.WithRoom(ctx, roomID, connectionID)
	l := log.Ctx(ctx)

	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	room, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsEnded() {
		return nil, ErrRoomUnavailable
	}

	participant := domain.Participant{UserID: userID, Role: role}
	if err := s.registry.Register(ctx, roomID, connectionID, participant); err != nil {
		return nil, fmt.Errorf("register %s in room %s: %w", connectionID, roomID, err)
	}

	if err := s.refreshViewerCount(ctx, room); err != nil {
		return nil, err
	}
	room.UpdatedAt = s.now()
	if err := s.rooms.Save(ctx, room); err != nil {
		return nil, fmt.Errorf("save room %s: %w", room.ID, err)
	}

	l.Info().
		Int64(log.FieldUserID, userID).
		Str(log.FieldRole, string(role)).
		Int("viewer_count", room.ViewerCount).
		Msg("participant joined")

	snapshot := *room
	return &domain.RoomUpdate{
		Room: room,
		Broadcasts: []domain.Broadcast{
			domain.ToConnection(room.ID, connectionID, domain.EventRoomState, snapshot),
			viewerCountBroadcast(room),
			domain.ToRoom(room.ID, domain.EventParticipantJoined, domain.ParticipantPayload{
				RoomID: room.ID,
				UserID: userID,
				Role:   role,
			}),
		},
	}, nil
}

// UnregisterPresence removes a connection from its room.
//
// Any owner connection dropping ends an active room, even when the owner
// still has other live connections.
func (s *roomServiceImpl) UnregisterPresence(ctx context.Context, connectionID string) (*domain.PresenceRemoval, error) {
	ctx = log.WithRoom(ctx, "", connectionID)

	roomID, participant, err := s.registry.Unregister(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("unregister %s: %w", connectionID, err)
	}
	if participant == nil {
		return nil, nil
	}
	ctx = log.WithRoom(ctx, roomID, "")
	l := log.Ctx(ctx)

	room, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	left := domain.ToRoom(room.ID, domain.EventParticipantLeft, domain.ParticipantPayload{
		RoomID: room.ID,
		UserID: participant.UserID,
		Role:   participant.Role,
	})

	if participant.Role == domain.RoleOwner && !room.IsEnded() {
		broadcasts, err := s.end(ctx, room, domain.EndReasonOwnerDisconnected)
		if err != nil {
			return nil, err
		}
		audit.Log(ctx, audit.ActionEndByDisconnect, participant.UserID, room.ID, "room ended by owner disconnect")

		// viewer_count_updated, participant_left, room_ended
		return &domain.PresenceRemoval{
			Room:              room,
			Participant:       *participant,
			EndedByDisconnect: true,
			Broadcasts:        []domain.Broadcast{broadcasts[0], left, broadcasts[1]},
		}, nil
	}

	if err := s.refreshViewerCount(ctx, room); err != nil {
		return nil, err
	}
	if !room.IsEnded() {
		room.UpdatedAt = s.now()
		if err := s.rooms.Save(ctx, room); err != nil {
			return nil, fmt.Errorf("save room %s: %w", room.ID, err)
		}
	}

	l.Info().
		Int64(log.FieldUserID, participant.UserID).
		Str(log.FieldRole, string(participant.Role)).
		Int("viewer_count", room.ViewerCount).
		Msg("participant left")

	return &domain.PresenceRemoval{
		Room:        room,
		Participant: *participant,
		Broadcasts:  []domain.Broadcast{viewerCountBroadcast(room), left},
	}, nil
}

// end moves a room to ENDED and wipes its registry in one atomic write.
// It returns viewer_count_updated followed by room_ended.
func (s *roomServiceImpl) end(ctx context.Context, room *domain.Room, reason string) ([]domain.Broadcast, error) {
	endedAt := s.now()
	room.Status = domain.RoomStatusEnded
	room.IsStreaming = false
	room.ViewerCount = 0
	room.EndedAt = &endedAt
	room.UpdatedAt = endedAt

	if err := s.rooms.SaveEnded(ctx, room); err != nil {
		return nil, fmt.Errorf("end room %s: %w", room.ID, err)
	}

	l := log.Ctx(log.WithRoom(ctx, room.ID, ""))
	l.Info().Str("reason", reason).Msg("room ended")

	return []domain.Broadcast{
		viewerCountBroadcast(room),
		domain.ToRoom(room.ID, domain.EventRoomEnded, domain.RoomEndedPayload{RoomID: room.ID, Reason: reason}),
	}, nil
}

func (s *roomServiceImpl) requireRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *roomServiceImpl) requireOwnedLiveRoom(ctx context.Context, roomID string, callerID int64) (*domain.Room, error) {
	room, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	if room.IsEnded() {
		return nil, ErrAlreadyEnded
	}
	return room, nil
}

func (s *roomServiceImpl) refreshViewerCount(ctx context.Context, room *domain.Room) error {
	count, err := s.registry.ViewerCount(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("count viewers of %s: %w", room.ID, err)
	}
	room.ViewerCount = count
	return nil
}

func viewerCountBroadcast(room *domain.Room) domain.Broadcast {
	return domain.ToRoom(room.ID, domain.EventViewerCountUpdated, domain.ViewerCountPayload{
		RoomID:      room.ID,
		ViewerCount: room.ViewerCount,
	})
}
