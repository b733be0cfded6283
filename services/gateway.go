package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"chatwire/config"
	"chatwire/models"
	"chatwire/utils"
)

// Gateway owns connection lifecycle: it binds an authenticated websocket to
// a session, registers it with the presence directory, runs the heartbeat,
// and dispatches inbound events to the realtime components.
type Gateway struct {
	hub      *Hub
	presence *PresenceService
	chat     *ChatEngine
	relay    *GroupRelay
	typing   *TypingRelay
	cfg      *config.Config
	logger   *utils.Logger
}

func NewGateway(hub *Hub, presence *PresenceService, chat *ChatEngine, relay *GroupRelay, typing *TypingRelay, cfg *config.Config, logger *utils.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: presence,
		chat:     chat,
		relay:    relay,
		typing:   typing,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleConnection runs one authenticated connection to completion. It
// returns when the connection drops and cleanup has finished.
func (g *Gateway) HandleConnection(ctx context.Context, conn *websocket.Conn, user *models.User) {
	client := NewClient(conn, user.ID.String(), g.hub, g.logger)
	client.handle = g.dispatch
	client.onClose = g.handleDisconnect

	g.connect(ctx, client)

	g.hub.wg.Add(1)
	go func() {
		defer g.hub.wg.Done()
		client.writePump()
	}()
	go g.heartbeat(client)

	client.readPump()
}

func (g *Gateway) connect(ctx context.Context, c *Client) {
	// Presence failures degrade: the connection stays up and the next
	// heartbeat retries the marker.
	if err := g.presence.RegisterConnection(ctx, c.UserID, c.ID); err != nil {
		g.logger.Warn("Failed to register connection in directory", "userId", c.UserID, "error", err)
	}
	if err := g.presence.MarkOnline(ctx, c.UserID); err != nil {
		g.logger.Warn("Failed to mark user online", "userId", c.UserID, "error", err)
	}

	g.hub.Register(c)

	if g.cfg.BroadcastPresence {
		if frame, err := models.NewEnvelope(models.EventUserOnline, models.PresencePayload{UserID: c.UserID}); err == nil {
			g.hub.Broadcast(frame, c.ID)
		}
	}

	if frame, err := models.NewEnvelope(models.EventConnected, models.ConnectedPayload{UserID: c.UserID}); err == nil {
		c.enqueue(frame)
	}

	g.logger.Info("Connection established", "connId", c.ID, "userId", c.UserID)
}

// heartbeat refreshes the online marker at a fixed interval until the
// connection closes. The marker TTL exceeds the interval so a single missed
// beat does not flap presence.
func (g *Gateway) heartbeat(c *Client) {
	ticker := time.NewTicker(g.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := g.presence.MarkOnline(ctx, c.UserID); err != nil {
				g.logger.Warn("Heartbeat failed", "userId", c.UserID, "error", err)
			}
			cancel()
		}
	}
}

// handleDisconnect tears down a session. The directory entry is removed
// before the offline broadcast so concurrent lookups never observe a stale
// online mapping after peers were told the user left.
func (g *Gateway) handleDisconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.close()

	if err := g.presence.RemoveConnection(ctx, c.UserID); err != nil {
		g.logger.Warn("Failed to remove directory entry", "userId", c.UserID, "error", err)
	}

	if g.cfg.BroadcastPresence {
		if frame, err := models.NewEnvelope(models.EventUserOffline, models.PresencePayload{UserID: c.UserID}); err == nil {
			g.hub.Broadcast(frame, c.ID)
		}
	}

	g.hub.Unregister(c)
	g.logger.Info("Connection closed", "connId", c.ID, "userId", c.UserID)
}

// dispatch routes one inbound frame to its handler. Handler errors are
// logged and surfaced to this connection only; they never terminate it.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := models.DecodeEnvelope(raw)
	if err != nil {
		g.emitError(c, "Invalid event frame")
		return
	}

	if err := g.handleEvent(ctx, c, env); err != nil {
		g.logger.Warn("Event handling failed", "event", env.Event, "userId", c.UserID, "error", err)
		g.emitError(c, userMessage(err))
	}
}

func (g *Gateway) handleEvent(ctx context.Context, c *Client, env *models.Envelope) error {
	switch env.Event {
	case models.EventPrivateMessage:
		var payload models.PrivateMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return g.chat.SendPrivate(ctx, c, payload)

	case models.EventMessageRead:
		var payload models.MessageReadPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return g.chat.MarkRead(ctx, c, payload)

	case models.EventTyping:
		var payload models.TypingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		g.typing.Relay(ctx, c, payload)
		return nil

	case models.EventJoinMyGroups:
		return g.relay.JoinMyGroups(ctx, c)

	case models.EventJoinGroup:
		var payload models.JoinGroupPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		if err := payload.Validate(); err != nil {
			return err
		}
		return g.relay.JoinGroup(ctx, c, payload.GroupID)

	case models.EventGroupMessage:
		var payload models.GroupMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return g.relay.SendGroup(ctx, c, payload)

	case models.EventLeaveGroup:
		var payload models.JoinGroupPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		if err := payload.Validate(); err != nil {
			return err
		}
		return g.relay.LeaveGroup(ctx, c, payload.GroupID)

	case models.EventGroupMessageRead:
		var payload models.MessageReadPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return g.relay.MarkGroupMessageRead(ctx, c, payload)

	default:
		g.logger.Debug("Unknown event", "event", env.Event, "userId", c.UserID)
		return nil
	}
}

func (g *Gateway) emitError(c *Client, message string) {
	if frame, err := models.NewEnvelope(models.EventError, models.ErrorPayload{Message: message}); err == nil {
		c.enqueue(frame)
	}
}

// userMessage maps internal errors to what the client is told
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please slow down."
	case errors.Is(err, ErrNotAMember):
		return "Not a member of this group"
	case errors.Is(err, ErrStoreUnavailable):
		return "Service temporarily unavailable"
	default:
		return "Failed to process event"
	}
}
