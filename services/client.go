package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatwire/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one live authenticated connection: the session binding a
// websocket to exactly one identity for its lifetime. The connection ID is
// published to the presence directory; the Client itself never leaves this
// process.
type Client struct {
	ID              string
	UserID          string
	AuthenticatedAt time.Time

	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *utils.Logger

	// handle processes one inbound frame; onClose runs disconnect cleanup.
	// Both are installed by the gateway before the pumps start.
	handle  func(c *Client, raw []byte)
	onClose func(c *Client)

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, userID string, hub *Hub, logger *utils.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		ID:              uuid.NewString(),
		UserID:          userID,
		AuthenticatedAt: time.Now(),
		conn:            conn,
		send:            make(chan []byte, sendBufferSize),
		hub:             hub,
		logger:          logger,
		closed:          make(chan struct{}),
	}
}

// enqueue hands a payload to the write loop without blocking. A full buffer
// or a closed connection drops the payload.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.logger.Warn("Send buffer full, dropping payload", "connId", c.ID, "userId", c.UserID)
		return false
	}
}

// close marks the client closed so no further payloads are queued
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// closeConn tears down the underlying websocket, unblocking the read pump
func (c *Client) closeConn() {
	c.close()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump processes inbound frames in receipt order until the connection
// drops, then runs disconnect cleanup exactly once.
func (c *Client) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		c.closeConn()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Unexpected close", "connId", c.ID, "userId", c.UserID, "error", err)
			}
			return
		}
		if c.handle != nil {
			c.handle(c, raw)
		}
	}
}

// writePump owns all writes to the connection: queued payloads and
// keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
