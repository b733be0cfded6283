package services

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryBus is the in-process broadcast bus shared by MemoryCoordinator
// instances. Multiple coordinators on one bus model multiple server
// processes sharing one Redis.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	pattern string
	ch      chan PubSubMessage
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBus) publish(channel, payload string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if matchPattern(sub.pattern, channel) {
			select {
			case sub.ch <- PubSubMessage{Channel: channel, Payload: payload}:
			default:
				// Slow subscriber: drop rather than block the publisher
			}
		}
	}
}

func (b *MemoryBus) subscribe(pattern string) (*memorySub, func()) {
	sub := &memorySub{pattern: pattern, ch: make(chan PubSubMessage, 64)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub, cancel
}

// matchPattern supports the glob subset Redis pattern subscriptions use
// here: a literal channel name or a trailing '*' wildcard.
func matchPattern(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// MemoryCoordinator is an in-process Coordinator. It backs tests and
// single-node development runs where no Redis is available.
type MemoryCoordinator struct {
	bus *MemoryBus

	mu       sync.Mutex
	strings  map[string]string
	hashes   map[string]map[string]string
	sets     map[string]map[string]struct{}
	expiries map[string]time.Time

	now func() time.Time
}

func NewMemoryCoordinator(bus *MemoryBus) *MemoryCoordinator {
	if bus == nil {
		bus = NewMemoryBus()
	}
	return &MemoryCoordinator{
		bus:      bus,
		strings:  make(map[string]string),
		hashes:   make(map[string]map[string]string),
		sets:     make(map[string]map[string]struct{}),
		expiries: make(map[string]time.Time),
		now:      time.Now,
	}
}

// purge lazily evicts a key whose TTL has elapsed. Callers must hold mc.mu.
func (mc *MemoryCoordinator) purge(key string) {
	deadline, ok := mc.expiries[key]
	if !ok || mc.now().Before(deadline) {
		return
	}
	delete(mc.strings, key)
	delete(mc.hashes, key)
	delete(mc.sets, key)
	delete(mc.expiries, key)
}

func (mc *MemoryCoordinator) Get(_ context.Context, key string) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	val, ok := mc.strings[key]
	return val, ok, nil
}

func (mc *MemoryCoordinator) Set(_ context.Context, key, value string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.strings[key] = value
	if ttl > 0 {
		mc.expiries[key] = mc.now().Add(ttl)
	} else {
		delete(mc.expiries, key)
	}
	return nil
}

func (mc *MemoryCoordinator) Del(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.strings, key)
		delete(mc.hashes, key)
		delete(mc.sets, key)
		delete(mc.expiries, key)
	}
	return nil
}

func (mc *MemoryCoordinator) Exists(_ context.Context, key string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	if _, ok := mc.strings[key]; ok {
		return true, nil
	}
	if _, ok := mc.hashes[key]; ok {
		return true, nil
	}
	_, ok := mc.sets[key]
	return ok, nil
}

func (mc *MemoryCoordinator) Incr(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	count, _ := strconv.ParseInt(mc.strings[key], 10, 64)
	count++
	mc.strings[key] = strconv.FormatInt(count, 10)
	return count, nil
}

func (mc *MemoryCoordinator) Expire(_ context.Context, key string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.expiries[key] = mc.now().Add(ttl)
	return nil
}

func (mc *MemoryCoordinator) HIncrBy(_ context.Context, key, field string, incr int64) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	hash, ok := mc.hashes[key]
	if !ok {
		hash = make(map[string]string)
		mc.hashes[key] = hash
	}
	count, _ := strconv.ParseInt(hash[field], 10, 64)
	hash[field] = strconv.FormatInt(count+incr, 10)
	return nil
}

func (mc *MemoryCoordinator) HGetAll(_ context.Context, key string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	out := make(map[string]string, len(mc.hashes[key]))
	for field, val := range mc.hashes[key] {
		out[field] = val
	}
	return out, nil
}

func (mc *MemoryCoordinator) HDel(_ context.Context, key string, fields ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, field := range fields {
		delete(mc.hashes[key], field)
	}
	return nil
}

func (mc *MemoryCoordinator) SAdd(_ context.Context, key string, members ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	set, ok := mc.sets[key]
	if !ok {
		set = make(map[string]struct{})
		mc.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (mc *MemoryCoordinator) SRem(_ context.Context, key string, members ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, member := range members {
		delete(mc.sets[key], member)
	}
	return nil
}

func (mc *MemoryCoordinator) SMembers(_ context.Context, key string) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.purge(key)
	members := make([]string, 0, len(mc.sets[key]))
	for member := range mc.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (mc *MemoryCoordinator) Publish(_ context.Context, channel, payload string) error {
	mc.bus.publish(channel, payload)
	return nil
}

func (mc *MemoryCoordinator) PSubscribe(_ context.Context, pattern string) (<-chan PubSubMessage, func(), error) {
	sub, cancel := mc.bus.subscribe(pattern)
	return sub.ch, cancel, nil
}

func (mc *MemoryCoordinator) Close() error {
	return nil
}
