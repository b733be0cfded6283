package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	coord := NewMemoryCoordinator(nil)
	limiter := NewRateLimiter(coord, testLogger())
	ctx := context.Background()

	// Exactly N actions succeed within the window
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "user-1", "act", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "action %d should be allowed", i+1)
	}

	// The (N+1)th within the same window is rejected
	allowed, err := limiter.Allow(ctx, "user-1", "act", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRateLimiterWindowReset(t *testing.T) {
	coord := NewMemoryCoordinator(nil)
	now := time.Now()
	coord.now = func() time.Time { return now }
	limiter := NewRateLimiter(coord, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "user-1", "act", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "user-1", "act", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// After the window elapses the counter resets entirely
	now = now.Add(61 * time.Second)
	allowed, err = limiter.Allow(ctx, "user-1", "act", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesIdentityAndAction(t *testing.T) {
	coord := NewMemoryCoordinator(nil)
	limiter := NewRateLimiter(coord, testLogger())
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user-1", "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = limiter.Allow(ctx, "user-1", "a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// Different action and different identity are separate counters
	allowed, err = limiter.Allow(ctx, "user-1", "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = limiter.Allow(ctx, "user-2", "a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterSurfacesStoreErrors(t *testing.T) {
	limiter := NewRateLimiter(failingCoordinator{}, testLogger())

	_, err := limiter.Allow(context.Background(), "user-1", "act", 5, time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
