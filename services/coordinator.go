package services

import (
	"context"
	"time"
)

// PubSubMessage is one payload received from the broadcast bus
type PubSubMessage struct {
	Channel string
	Payload string
}

// Coordinator abstracts the shared coordination store (Redis in production).
// Each operation is an independently atomic round-trip; no cross-operation
// locks are held. Injected into every component so they stay testable with
// the in-memory implementation.
type Coordinator interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HIncrBy(ctx context.Context, key, field string, incr int64) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Publish(ctx context.Context, channel, payload string) error
	// PSubscribe subscribes to a channel pattern. The returned cancel func
	// unsubscribes and closes the message channel.
	PSubscribe(ctx context.Context, pattern string) (<-chan PubSubMessage, func(), error)
	Close() error
}
