package services

import (
	"sync"
	"time"

	"chatwire/utils"
)

// Hub tracks the connections owned by this process and the rooms they have
// joined. A room is either a user's personal room (named by their ID) or a
// group room (`group:<id>`). The cluster-wide view lives in the presence
// directory; the hub only ever resolves connections it owns.
type Hub struct {
	logger *utils.Logger

	mu    sync.RWMutex
	conns map[string]*Client            // connection ID -> client
	rooms map[string]map[string]*Client // room -> connection ID -> client

	wg   sync.WaitGroup
	done chan struct{}
}

func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*Client),
		rooms:  make(map[string]map[string]*Client),
		done:   make(chan struct{}),
	}
}

// Register adds a client to the hub and its personal room
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.joinRoomLocked(c.UserID, c)
	total := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("Client registered", "connId", c.ID, "userId", c.UserID, "total", total)
}

// Unregister removes a client from the hub and every room it joined
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.ID)
	for room, members := range h.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	total := len(h.conns)
	h.mu.Unlock()

	c.close()
	h.logger.Info("Client unregistered", "connId", c.ID, "userId", c.UserID, "total", total)
}

func (h *Hub) joinRoomLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
}

// JoinRoom adds a client to a named room
func (h *Hub) JoinRoom(room string, c *Client) {
	h.mu.Lock()
	h.joinRoomLocked(room, c)
	h.mu.Unlock()
}

// LeaveRoom removes a client from a named room
func (h *Hub) LeaveRoom(room string, c *Client) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// InRoom reports whether a client is currently joined to a room
func (h *Hub) InRoom(room string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c.ID]
	return ok
}

// EmitToConn delivers a payload to a locally-owned connection. It reports
// false when this process does not own the connection or its send buffer
// is full.
func (h *Hub) EmitToConn(connID string, payload []byte) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(payload)
}

// EmitToRoom delivers a payload to every local member of a room, optionally
// excluding one connection. Returns the number of queued deliveries.
func (h *Hub) EmitToRoom(room string, payload []byte, exceptConnID string) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		if c.ID != exceptConnID {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.enqueue(payload) {
			delivered++
		}
	}
	return delivered
}

// Broadcast delivers a payload to every local connection except one
func (h *Hub) Broadcast(payload []byte, exceptConnID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		if c.ID != exceptConnID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(payload)
	}
}

// ConnCount returns the number of locally-owned connections
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown closes every client connection and waits for their pumps to
// finish, up to the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeConn()
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("Hub shutdown completed", "closed", len(clients))
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timed out")
		return ErrShutdownTimeout
	}
}
