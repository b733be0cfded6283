package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.PresenceTTL)
	assert.Equal(t, 24*time.Hour, cfg.SocketTTL)
	assert.True(t, cfg.BroadcastPresence)
	assert.Equal(t, 20, cfg.PrivateMessageLimit)
	assert.Equal(t, 30, cfg.GroupMessageLimit)
	assert.Equal(t, 3, cfg.OTPRequestLimit)
	assert.True(t, cfg.RateLimitFailOpen)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 3, cfg.OTPMaxAttempts)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "5")
	t.Setenv("BROADCAST_PRESENCE", "false")
	t.Setenv("PRIVATE_MESSAGE_LIMIT", "50")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "false")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.BroadcastPresence)
	assert.Equal(t, 50, cfg.PrivateMessageLimit)
	assert.False(t, cfg.RateLimitFailOpen)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PRIVATE_MESSAGE_LIMIT", "lots")
	t.Setenv("BROADCAST_PRESENCE", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 20, cfg.PrivateMessageLimit)
	assert.True(t, cfg.BroadcastPresence)
}
