package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// DisconnectHandler is called when a client disconnects.
type DisconnectHandler func(*Client)

// MessageHandler processes one inbound frame.
type MessageHandler func(*Client, []byte)

// Client represents a connected WebSocket client.
type Client struct {
	ID                string
	Session           *domain.Session
	hub               *Hub
	conn              *websocket.Conn
	send              chan []byte
	disconnectHandler DisconnectHandler
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, h *Hub, conn *websocket.Conn, session *domain.Session) *Client {
	return &Client{
		ID:      id,
		Session: session,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.config.SendBufferSize),
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Start launches the read and write pumps.
func (c *Client) Start(handler MessageHandler) {
	c.hub.pumps.Add(1)
	go c.writePump()
	go c.readPump(handler)
}

// SendMessage queues a message for this client.
func (c *Client) SendMessage(message interface{}) error {
	return c.hub.SendToClient(c.ID, message)
}

func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		// Call disconnect handler before unregistering
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.hub.Unregister(c)
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	cfg := c.hub.config
	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Warn().Err(err).Str(pkglog.FieldConnectionID, c.ID).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

func (c *Client) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
