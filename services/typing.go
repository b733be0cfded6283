package services

import (
	"context"

	"chatwire/models"
	"chatwire/utils"
)

// TypingRelay forwards typing indicators between peers. It is stateless and
// best-effort: an unreachable peer means the indicator is silently dropped,
// never persisted or retried.
type TypingRelay struct {
	presence *PresenceService
	hub      *Hub
	logger   *utils.Logger
}

func NewTypingRelay(presence *PresenceService, hub *Hub, logger *utils.Logger) *TypingRelay {
	return &TypingRelay{presence: presence, hub: hub, logger: logger}
}

// Relay forwards a typing status to the peer's connection if this process
// can resolve it
func (tr *TypingRelay) Relay(ctx context.Context, from *Client, payload models.TypingPayload) {
	if payload.Validate() != nil {
		return
	}

	connID, online, err := tr.presence.LookupConnection(ctx, payload.To)
	if err != nil || !online {
		return
	}

	frame, err := models.NewEnvelope(models.EventTypingStatus, models.TypingStatusPayload{
		UserID:   from.UserID,
		IsTyping: payload.IsTyping,
	})
	if err != nil {
		tr.logger.Error("Failed to encode typing status", "error", err)
		return
	}
	tr.hub.EmitToConn(connID, frame)
}
