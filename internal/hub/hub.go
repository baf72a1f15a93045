package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/config"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// Hub tracks the live sockets of this instance and their room membership.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	unregister chan *Client
	broadcast  chan *RoomMessage
	quit       chan struct{}
	stopOnce   sync.Once
	doneCh     chan struct{}
	pumps      sync.WaitGroup
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// RoomMessage is a message to be broadcast to a room.
type RoomMessage struct {
	RoomID  string
	Message []byte
	Exclude string // Client ID to exclude from broadcast
	// Evict detaches every client from the room once the message is queued.
	Evict bool
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		quit:       make(chan struct{}),
		doneCh:     make(chan struct{}),
		config:     cfg,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.doneCh)
	l := pkglog.L()

	for {
		select {
		case <-h.quit:
			return

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, roomClients := range h.rooms {
					delete(roomClients, client.ID)
					if len(roomClients) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldConnectionID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *RoomMessage) {
	if msg.Evict {
		h.mu.Lock()
		defer h.mu.Unlock()
	} else {
		h.mu.RLock()
		defer h.mu.RUnlock()
	}

	roomClients, ok := h.rooms[msg.RoomID]
	if !ok {
		return
	}
	for clientID, client := range roomClients {
		if clientID == msg.Exclude {
			continue
		}
		select {
		case client.send <- msg.Message:
		default:
			// Client's send buffer is full
			go h.removeClient(client)
		}
	}

	if msg.Evict {
		for _, client := range roomClients {
			client.Session.LeaveRoom()
		}
		delete(h.rooms, msg.RoomID)
	}
}

// Stop ends the main loop. Call Done() to wait for it to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Done returns a channel that is closed when the main loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.doneCh
}

// Register adds a client to the hub. It is synchronous so the client can be
// addressed as soon as it returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnectionID, client.ID).Msg("client registered")
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// JoinRoom adds a client to a room's local fan-out set.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
}

// LeaveRoom removes a client from a room's local fan-out set.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastToRoom sends a message to all local clients in a room.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	return h.enqueue(roomID, message, exclude, false)
}

// CloseRoom sends a final message to a room and detaches its clients.
// Their sockets stay open.
func (h *Hub) CloseRoom(roomID string, message interface{}) error {
	return h.enqueue(roomID, message, "", true)
}

func (h *Hub) enqueue(roomID string, message interface{}, exclude string, evict bool) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &RoomMessage{RoomID: roomID, Message: data, Exclude: exclude, Evict: evict}:
	case <-h.quit:
	}
	return nil
}

// SendToClient sends a message to a specific client. Unknown ids are ignored.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	if ok {
		select {
		case client.send <- data:
		default:
			go h.removeClient(client)
		}
	}
	h.mu.RUnlock()
	return nil
}

// RoomSize returns the number of local clients in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every socket and waits for their read loops, and with them
// the disconnect handlers, to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	for _, client := range h.clients {
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) removeClient(client *Client) {
	h.Unregister(client)
}
