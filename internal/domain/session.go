package domain

import (
	"sync"
	"time"
)

// Session is the per-connection state of a live socket.
type Session struct {
	ConnectionID  string
	UserID        int64
	Username      string
	Authenticated bool
	CreatedAt     time.Time
	LastActiveAt  time.Time

	roomID      string
	role        Role
	participant int64
	mu          sync.RWMutex
}

// NewSession creates a session for a freshly opened connection.
func NewSession(connectionID string) *Session {
	now := time.Now()
	return &Session{
		ConnectionID: connectionID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Authenticate records the identity resolved from the connection's token.
func (s *Session) Authenticate(userID int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Username = username
	s.Authenticated = true
}

// IsAuthenticated returns whether the session carries a verified identity.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

// Identity resolves the user a join acts as. A verified identity wins over
// the one the client asked for.
func (s *Session) Identity(requested *int64) *int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Authenticated {
		id := s.UserID
		return &id
	}
	return requested
}

// JoinRoom records the room this connection is present in.
func (s *Session) JoinRoom(roomID string, role Role, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.role = role
	s.participant = userID
	s.LastActiveAt = time.Now()
}

// LeaveRoom clears the current room and returns the one that was left.
func (s *Session) LeaveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.roomID
	s.roomID = ""
	s.role = ""
	s.participant = 0
	return prev
}

// CurrentRoom returns the room id, role and participant user id; roomID is
// empty when the connection is not in a room.
func (s *Session) CurrentRoom() (roomID string, role Role, userID int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.role, s.participant
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
