package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatwire/config"
	"chatwire/models"
	"chatwire/utils"
)

// ChatEngine drives the private-message delivery state machine:
// sent -> delivered -> read, monotonic and idempotent.
type ChatEngine struct {
	store    Store
	presence *PresenceService
	limiter  *RateLimiter
	hub      *Hub
	cfg      *config.Config
	logger   *utils.Logger
}

func NewChatEngine(store Store, presence *PresenceService, limiter *RateLimiter, hub *Hub, cfg *config.Config, logger *utils.Logger) *ChatEngine {
	return &ChatEngine{
		store:    store,
		presence: presence,
		limiter:  limiter,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
	}
}

// allowOrFail applies the configured fail policy to a limiter result.
// Messaging defaults to fail-open on store errors to preserve availability.
func (ce *ChatEngine) allowOrFail(ctx context.Context, userID, action string, limit int) error {
	allowed, err := ce.limiter.Allow(ctx, userID, action, limit, time.Minute)
	if err != nil {
		if ce.cfg.RateLimitFailOpen {
			ce.logger.Warn("Rate limiter unavailable, failing open", "userId", userID, "action", action, "error", err)
			return nil
		}
		return err
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// SendPrivate persists and delivers one private message, acknowledging the
// sender with the resulting delivery state.
func (ce *ChatEngine) SendPrivate(ctx context.Context, sender *Client, payload models.PrivateMessagePayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	toID, err := uuid.Parse(payload.To)
	if err != nil {
		return fmt.Errorf("invalid recipient id: %w", err)
	}
	fromID, err := uuid.Parse(sender.UserID)
	if err != nil {
		return fmt.Errorf("invalid sender id: %w", err)
	}

	if err := ce.allowOrFail(ctx, sender.UserID, ActionSendMessage, ce.cfg.PrivateMessageLimit); err != nil {
		return err
	}

	msg := &models.Message{
		ID:        uuid.New(),
		FromID:    fromID,
		ToID:      toID,
		Text:      payload.Text,
		State:     models.MessageStateSent,
		CreatedAt: time.Now(),
	}
	if err := ce.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	// A directory failure must not abort the send; the message is already
	// persisted, so degrade to the offline path.
	connID, online, err := ce.presence.LookupConnection(ctx, payload.To)
	if err != nil {
		ce.logger.Warn("Connection lookup failed, treating recipient as offline", "to", payload.To, "error", err)
		online = false
	}

	delivered := false
	if online {
		frame, err := models.NewEnvelope(models.EventReceiveMessage, models.ReceiveMessagePayload{
			ID:        msg.ID.String(),
			From:      sender.UserID,
			To:        payload.To,
			Text:      msg.Text,
			Timestamp: msg.CreatedAt,
		})
		if err != nil {
			return err
		}
		delivered = ce.hub.EmitToConn(connID, frame)
	}

	if delivered {
		if err := ce.store.MarkMessageDelivered(ctx, msg.ID); err != nil {
			// The recipient has the message; leaving the record at `sent`
			// is a valid earlier state.
			ce.logger.Error("Failed to persist delivered transition", "messageId", msg.ID, "error", err)
		}
		ack, err := models.NewEnvelope(models.EventMessageDelivered, models.MessageDeliveredPayload{MessageID: msg.ID.String()})
		if err != nil {
			return err
		}
		sender.enqueue(ack)
	} else {
		if err := ce.presence.IncrementUnread(ctx, payload.To, sender.UserID); err != nil {
			ce.logger.Warn("Failed to increment unread counter", "to", payload.To, "error", err)
		}
		ack, err := models.NewEnvelope(models.EventMessageSent, models.MessageSentPayload{MessageID: msg.ID.String(), Delivered: false})
		if err != nil {
			return err
		}
		sender.enqueue(ack)
	}

	ce.logger.Info("Private message processed", "messageId", msg.ID, "from", sender.UserID, "to", payload.To, "delivered", delivered)
	return nil
}

// MarkRead applies the read transition and, on the first application only,
// sends the original sender a read receipt if they are reachable from this
// process. Unknown, malformed, or already-read message IDs are no-ops.
func (ce *ChatEngine) MarkRead(ctx context.Context, reader *Client, payload models.MessageReadPayload) error {
	msgID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return nil
	}

	readAt := time.Now()
	msg, transitioned, err := ce.store.MarkMessageRead(ctx, msgID, readAt)
	if err != nil {
		return fmt.Errorf("failed to persist read transition: %w", err)
	}
	if msg == nil || !transitioned {
		return nil
	}

	connID, online, err := ce.presence.LookupConnection(ctx, msg.FromID.String())
	if err != nil || !online {
		return nil
	}

	receipt, err := models.NewEnvelope(models.EventMessageReadReceipt, models.MessageReadReceiptPayload{
		MessageID: payload.MessageID,
		ReadBy:    reader.UserID,
		ReadAt:    readAt,
	})
	if err != nil {
		return err
	}
	ce.hub.EmitToConn(connID, receipt)
	return nil
}
