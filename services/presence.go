package services

import (
	"context"
	"strconv"
	"time"

	"chatwire/config"
	"chatwire/utils"
)

const (
	socketKeyPrefix    = "socket:"
	onlineKeyPrefix    = "online:"
	onlineSetKey       = "online_users"
	groupRoomKeyPrefix = "grouproom:"
	unreadKeyPrefix    = "unread:"
)

// PresenceService is the presence and socket directory on the coordination
// store. A socket mapping is only meaningful to the process that owns the
// connection; the online marker is cluster-wide and kept alive by heartbeats.
type PresenceService struct {
	coord     Coordinator
	logger    *utils.Logger
	onlineTTL time.Duration
	socketTTL time.Duration
}

func NewPresenceService(coord Coordinator, cfg *config.Config, logger *utils.Logger) *PresenceService {
	return &PresenceService{
		coord:     coord,
		logger:    logger,
		onlineTTL: cfg.PresenceTTL,
		socketTTL: cfg.SocketTTL,
	}
}

// RegisterConnection maps a user to their connection ID, overwriting any
// prior mapping (last-writer-wins; one recognized connection per identity).
// The long safety expiry bounds staleness if cleanup on disconnect fails.
func (ps *PresenceService) RegisterConnection(ctx context.Context, userID, connID string) error {
	if err := ps.coord.Set(ctx, socketKeyPrefix+userID, connID, ps.socketTTL); err != nil {
		return err
	}
	ps.logger.Debug("Registered connection", "userId", userID, "connId", connID)
	return nil
}

// LookupConnection resolves a user's registered connection ID, if any
func (ps *PresenceService) LookupConnection(ctx context.Context, userID string) (string, bool, error) {
	return ps.coord.Get(ctx, socketKeyPrefix+userID)
}

// RemoveConnection deletes the user's socket mapping
func (ps *PresenceService) RemoveConnection(ctx context.Context, userID string) error {
	if err := ps.coord.Del(ctx, socketKeyPrefix+userID); err != nil {
		return err
	}
	ps.logger.Debug("Removed connection", "userId", userID)
	return nil
}

// MarkOnline refreshes the user's online marker. The TTL must exceed the
// heartbeat interval by a safety margin so one missed heartbeat does not
// falsely report offline.
func (ps *PresenceService) MarkOnline(ctx context.Context, userID string) error {
	value := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := ps.coord.Set(ctx, onlineKeyPrefix+userID, value, ps.onlineTTL); err != nil {
		return err
	}
	return ps.coord.SAdd(ctx, onlineSetKey, userID)
}

// IsOnline is a pure existence check on the online marker, independent of
// the socket mapping: another process may hold the user's connection.
// Store errors degrade to offline.
func (ps *PresenceService) IsOnline(ctx context.Context, userID string) bool {
	exists, err := ps.coord.Exists(ctx, onlineKeyPrefix+userID)
	if err != nil {
		ps.logger.Warn("Presence check failed, treating as offline", "userId", userID, "error", err)
		return false
	}
	return exists
}

// OnlineUsers returns the IDs of users with a live online marker, pruning
// entries whose marker has expired from the tracking set.
func (ps *PresenceService) OnlineUsers(ctx context.Context) ([]string, error) {
	candidates, err := ps.coord.SMembers(ctx, onlineSetKey)
	if err != nil {
		return nil, err
	}

	online := make([]string, 0, len(candidates))
	var expired []string
	for _, userID := range candidates {
		exists, err := ps.coord.Exists(ctx, onlineKeyPrefix+userID)
		if err != nil {
			continue
		}
		if exists {
			online = append(online, userID)
		} else {
			expired = append(expired, userID)
		}
	}

	if len(expired) > 0 {
		if err := ps.coord.SRem(ctx, onlineSetKey, expired...); err != nil {
			ps.logger.Warn("Failed to prune online set", "error", err)
		}
	}
	return online, nil
}

// AddToGroupRoom records a user as a connected member of a group room
func (ps *PresenceService) AddToGroupRoom(ctx context.Context, groupID, userID string) error {
	return ps.coord.SAdd(ctx, groupRoomKeyPrefix+groupID, userID)
}

// RemoveFromGroupRoom removes a user from a group room's connected set
func (ps *PresenceService) RemoveFromGroupRoom(ctx context.Context, groupID, userID string) error {
	return ps.coord.SRem(ctx, groupRoomKeyPrefix+groupID, userID)
}

// GroupRoomMembers lists users currently tracked in a group room
func (ps *PresenceService) GroupRoomMembers(ctx context.Context, groupID string) ([]string, error) {
	return ps.coord.SMembers(ctx, groupRoomKeyPrefix+groupID)
}

// IncrementUnread bumps the unread counter a recipient holds for a sender
func (ps *PresenceService) IncrementUnread(ctx context.Context, userID, fromUserID string) error {
	return ps.coord.HIncrBy(ctx, unreadKeyPrefix+userID, fromUserID, 1)
}

// UnreadCounts returns per-sender unread message counts for a user
func (ps *PresenceService) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	raw, err := ps.coord.HGetAll(ctx, unreadKeyPrefix+userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(raw))
	for from, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		counts[from] = n
	}
	return counts, nil
}

// ClearUnread resets the unread counter for one conversation
func (ps *PresenceService) ClearUnread(ctx context.Context, userID, fromUserID string) error {
	return ps.coord.HDel(ctx, unreadKeyPrefix+userID, fromUserID)
}
