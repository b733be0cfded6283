package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatwire/config"
	"chatwire/models"
	"chatwire/utils"
)

const groupChannelPrefix = "group:"

// GroupRoom names the local room (and broadcast channel) for a group
func GroupRoom(groupID string) string {
	return groupChannelPrefix + groupID
}

// GroupRelay fans group messages out across server processes. Sending
// persists the message once and publishes the fully-formed payload on the
// group's channel; every process, the originator included, re-emits
// received payloads to its own local room members. The broadcast bus is the
// only cross-process coordination mechanism.
type GroupRelay struct {
	coord    Coordinator
	store    Store
	presence *PresenceService
	limiter  *RateLimiter
	hub      *Hub
	cfg      *config.Config
	logger   *utils.Logger

	cancel func()
	done   chan struct{}
}

func NewGroupRelay(coord Coordinator, store Store, presence *PresenceService, limiter *RateLimiter, hub *Hub, cfg *config.Config, logger *utils.Logger) *GroupRelay {
	return &GroupRelay{
		coord:    coord,
		store:    store,
		presence: presence,
		limiter:  limiter,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start subscribes to all group channels and begins re-emitting received
// payloads to local room members
func (gr *GroupRelay) Start(ctx context.Context) error {
	ch, cancel, err := gr.coord.PSubscribe(ctx, groupChannelPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to subscribe to group channels: %w", err)
	}
	gr.cancel = cancel
	gr.done = make(chan struct{})

	go func() {
		defer close(gr.done)
		for msg := range ch {
			frame, err := json.Marshal(models.Envelope{
				Event: models.EventGroupMessageReceived,
				Data:  json.RawMessage(msg.Payload),
			})
			if err != nil {
				gr.logger.Error("Failed to frame group payload", "channel", msg.Channel, "error", err)
				continue
			}
			delivered := gr.hub.EmitToRoom(msg.Channel, frame, "")
			gr.logger.Debug("Fanned out group message", "channel", msg.Channel, "delivered", delivered)
		}
	}()

	gr.logger.Info("Subscribed to group message channels")
	return nil
}

// Stop unsubscribes from the broadcast bus and waits for the fan-out loop
func (gr *GroupRelay) Stop() {
	if gr.cancel != nil {
		gr.cancel()
		<-gr.done
	}
}

// requireMember verifies current group membership, mapping an unknown group
// or non-member to ErrNotAMember
func (gr *GroupRelay) requireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	member, err := gr.store.IsGroupMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("membership check failed: %w", err)
	}
	if !member {
		return ErrNotAMember
	}
	return nil
}

// SendGroup persists one copy of a group message and publishes it for
// cluster-wide fan-out
func (gr *GroupRelay) SendGroup(ctx context.Context, sender *Client, payload models.GroupMessagePayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	groupID, err := uuid.Parse(payload.GroupID)
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	senderID, err := uuid.Parse(sender.UserID)
	if err != nil {
		return fmt.Errorf("invalid sender id: %w", err)
	}

	allowed, err := gr.limiter.Allow(ctx, sender.UserID, ActionGroupMessage, gr.cfg.GroupMessageLimit, time.Minute)
	if err != nil {
		if !gr.cfg.RateLimitFailOpen {
			return err
		}
		gr.logger.Warn("Rate limiter unavailable, failing open", "userId", sender.UserID, "error", err)
	} else if !allowed {
		return ErrRateLimited
	}

	if err := gr.requireMember(ctx, groupID, senderID); err != nil {
		return err
	}

	msg := &models.GroupMessage{
		ID:        uuid.New(),
		GroupID:   groupID,
		FromID:    senderID,
		Text:      payload.Text,
		CreatedAt: time.Now(),
	}
	if err := gr.store.CreateGroupMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist group message: %w", err)
	}
	// Sender has read their own message
	if err := gr.store.AddGroupMessageReader(ctx, msg.ID, senderID); err != nil {
		gr.logger.Warn("Failed to seed reader set", "messageId", msg.ID, "error", err)
	}

	wire, err := json.Marshal(models.GroupMessageReceivedPayload{
		ID:        msg.ID.String(),
		GroupID:   payload.GroupID,
		From:      sender.UserID,
		Text:      msg.Text,
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode group payload: %w", err)
	}
	if err := gr.coord.Publish(ctx, GroupRoom(payload.GroupID), string(wire)); err != nil {
		return err
	}

	gr.logger.Info("Group message published", "messageId", msg.ID, "groupId", payload.GroupID, "from", sender.UserID)
	return nil
}

// JoinGroup verifies membership and adds the connection to the group's
// local room. Membership is checked at join time only; a member removed
// mid-session keeps receiving fan-out until they leave or reconnect.
func (gr *GroupRelay) JoinGroup(ctx context.Context, c *Client, rawGroupID string) error {
	groupID, err := uuid.Parse(rawGroupID)
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	if err := gr.requireMember(ctx, groupID, userID); err != nil {
		return err
	}

	gr.hub.JoinRoom(GroupRoom(rawGroupID), c)
	if err := gr.presence.AddToGroupRoom(ctx, rawGroupID, c.UserID); err != nil {
		gr.logger.Warn("Failed to track group room membership", "groupId", rawGroupID, "error", err)
	}
	gr.logger.Info("Joined group room", "userId", c.UserID, "groupId", rawGroupID)
	return nil
}

// JoinMyGroups joins the connection to the rooms of every group the user
// belongs to
func (gr *GroupRelay) JoinMyGroups(ctx context.Context, c *Client) error {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	groups, err := gr.store.GroupsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	for _, group := range groups {
		gid := group.ID.String()
		gr.hub.JoinRoom(GroupRoom(gid), c)
		if err := gr.presence.AddToGroupRoom(ctx, gid, c.UserID); err != nil {
			gr.logger.Warn("Failed to track group room membership", "groupId", gid, "error", err)
		}
	}
	gr.logger.Info("Joined user's group rooms", "userId", c.UserID, "groups", len(groups))
	return nil
}

// LeaveGroup removes the user from the group and its room, then notifies
// the remaining local room members
func (gr *GroupRelay) LeaveGroup(ctx context.Context, c *Client, rawGroupID string) error {
	groupID, err := uuid.Parse(rawGroupID)
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	if err := gr.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}

	room := GroupRoom(rawGroupID)
	gr.hub.LeaveRoom(room, c)
	if err := gr.presence.RemoveFromGroupRoom(ctx, rawGroupID, c.UserID); err != nil {
		gr.logger.Warn("Failed to untrack group room membership", "groupId", rawGroupID, "error", err)
	}

	frame, err := models.NewEnvelope(models.EventMemberLeft, models.MemberLeftPayload{
		GroupID: rawGroupID,
		UserID:  c.UserID,
	})
	if err != nil {
		return err
	}
	gr.hub.EmitToRoom(room, frame, c.ID)
	gr.logger.Info("Left group", "userId", c.UserID, "groupId", rawGroupID)
	return nil
}

// MarkGroupMessageRead adds the reader to the message's reader set.
// Re-reading is a no-op by union semantics.
func (gr *GroupRelay) MarkGroupMessageRead(ctx context.Context, c *Client, payload models.MessageReadPayload) error {
	msgID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return nil
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil
	}
	return gr.store.AddGroupMessageReader(ctx, msgID, userID)
}
