package services

import (
	"context"
	"fmt"
	"time"

	"chatwire/utils"
)

// Rate limited actions
const (
	ActionSendMessage  = "send_message"
	ActionGroupMessage = "group_message"
	ActionSendOTP      = "send_otp"
)

// RateLimiter implements a fixed-window counter on the coordination store.
// The window boundary is set exactly once per window, by whichever request
// first increments the counter from zero. Bursts are possible at window
// boundaries.
type RateLimiter struct {
	coord  Coordinator
	logger *utils.Logger
}

func NewRateLimiter(coord Coordinator, logger *utils.Logger) *RateLimiter {
	return &RateLimiter{coord: coord, logger: logger}
}

// Allow increments the counter for (id, action) and reports whether the
// action is within the limit for the current window. A store error is
// returned so that callers can apply their own fail-open or fail-closed
// policy.
func (rl *RateLimiter) Allow(ctx context.Context, id, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("rate:%s:%s", id, action)

	count, err := rl.coord.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := rl.coord.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	allowed := count <= int64(limit)
	if !allowed {
		rl.logger.Warn("Rate limit exceeded", "id", id, "action", action, "count", count, "limit", limit)
	}
	return allowed, nil
}
