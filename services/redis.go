package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatwire/config"
	"chatwire/utils"
)

// NewRedisClient connects to Redis using the configured URL
func NewRedisClient(cfg *config.Config, logger *utils.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DB = cfg.RedisDB

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis", "url", cfg.RedisURL, "db", cfg.RedisDB)
	return client, nil
}

// RedisCoordinator implements Coordinator on top of go-redis. Publishing and
// key operations share one client; each PSubscribe opens its own PubSub
// connection, as Redis requires.
type RedisCoordinator struct {
	client *redis.Client
}

func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client}
}

func (rc *RedisCoordinator) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: GET %s: %v", ErrStoreUnavailable, key, err)
	}
	return val, true, nil
}

func (rc *RedisCoordinator) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := rc.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: SET %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) Del(ctx context.Context, keys ...string) error {
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: DEL: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (rc *RedisCoordinator) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: EXISTS %s: %v", ErrStoreUnavailable, key, err)
	}
	return n == 1, nil
}

func (rc *RedisCoordinator) Incr(ctx context.Context, key string) (int64, error) {
	count, err := rc.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: INCR %s: %v", ErrStoreUnavailable, key, err)
	}
	return count, nil
}

func (rc *RedisCoordinator) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := rc.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: EXPIRE %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	if err := rc.client.HIncrBy(ctx, key, field, incr).Err(); err != nil {
		return fmt.Errorf("%w: HINCRBY %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := rc.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: HGETALL %s: %v", ErrStoreUnavailable, key, err)
	}
	return vals, nil
}

func (rc *RedisCoordinator) HDel(ctx context.Context, key string, fields ...string) error {
	if err := rc.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("%w: HDEL %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := rc.client.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: SADD %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := rc.client.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: SREM %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (rc *RedisCoordinator) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := rc.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: SMEMBERS %s: %v", ErrStoreUnavailable, key, err)
	}
	return members, nil
}

func (rc *RedisCoordinator) Publish(ctx context.Context, channel, payload string) error {
	if err := rc.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: PUBLISH %s: %v", ErrStoreUnavailable, channel, err)
	}
	return nil
}

func (rc *RedisCoordinator) PSubscribe(ctx context.Context, pattern string) (<-chan PubSubMessage, func(), error) {
	pubsub := rc.client.PSubscribe(ctx, pattern)

	// Force the subscription to be established before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("%w: PSUBSCRIBE %s: %v", ErrStoreUnavailable, pattern, err)
	}

	out := make(chan PubSubMessage, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- PubSubMessage{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel, nil
}

func (rc *RedisCoordinator) Close() error {
	return rc.client.Close()
}
