package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatwire/config"
	"chatwire/models"
	"chatwire/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		HeartbeatInterval:   10 * time.Second,
		PresenceTTL:         30 * time.Second,
		SocketTTL:           24 * time.Hour,
		BroadcastPresence:   true,
		PrivateMessageLimit: 20,
		GroupMessageLimit:   30,
		OTPRequestLimit:     3,
		RateLimitFailOpen:   true,
		OTPTTL:              5 * time.Minute,
		OTPMaxAttempts:      3,
		JWTSecret:           "test-secret",
		TokenExpiry:         time.Hour,
	}
}

func testLogger() *utils.Logger {
	return utils.NewLogger()
}

// newTestClient builds a client without a websocket connection; tests read
// queued frames straight from the send buffer.
func newTestClient(hub *Hub, userID string) *Client {
	c := NewClient(nil, userID, hub, testLogger())
	hub.Register(c)
	return c
}

// nextFrame pops one queued frame and decodes its envelope
func nextFrame(t *testing.T, c *Client) *models.Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		env, err := models.DecodeEnvelope(raw)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return nil
	}
}

// decodeData unmarshals an envelope payload into out
func decodeData(t *testing.T, env *models.Envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("bad payload for %s: %v", env.Event, err)
	}
}

func frameCount(c *Client) int {
	return len(c.send)
}

// fakeStore is an in-memory services.Store used by engine and relay tests
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	messages      map[uuid.UUID]*models.Message
	groups        map[uuid.UUID]*models.Group
	members       map[uuid.UUID]map[uuid.UUID]bool
	groupMessages map[uuid.UUID]*models.GroupMessage
	readers       map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*models.User),
		messages:      make(map[uuid.UUID]*models.Message),
		groups:        make(map[uuid.UUID]*models.Group),
		members:       make(map[uuid.UUID]map[uuid.UUID]bool),
		groupMessages: make(map[uuid.UUID]*models.GroupMessage),
		readers:       make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeStore) addUser(id uuid.UUID) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &models.User{ID: id, MobileNumber: "+1" + id.String()[:8], Name: "User"}
	f.users[id] = user
	return user
}

func (f *fakeStore) addGroup(members ...uuid.UUID) *models.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	group := &models.Group{ID: uuid.New(), Name: "group"}
	f.groups[group.ID] = group
	f.members[group.ID] = make(map[uuid.UUID]bool)
	for _, m := range members {
		f.members[group.ID][m] = true
	}
	return group
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) UserByMobile(_ context.Context, mobile string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.MobileNumber == mobile {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) SearchUsers(_ context.Context, _ string, exclude uuid.UUID, _ int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for id, user := range f.users {
		if id != exclude {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchLastSeen(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeStore) CreateMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	stored := *msg
	f.messages[msg.ID] = &stored
	return nil
}

func (f *fakeStore) MarkMessageDelivered(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok && msg.State == models.MessageStateSent {
		msg.State = models.MessageStateDelivered
	}
	return nil
}

func (f *fakeStore) MarkMessageRead(_ context.Context, id uuid.UUID, readAt time.Time) (*models.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, false, nil
	}
	if msg.State == models.MessageStateRead {
		out := *msg
		return &out, false, nil
	}
	msg.State = models.MessageStateRead
	msg.ReadAt = &readAt
	out := *msg
	return &out, true, nil
}

func (f *fakeStore) ChatHistory(_ context.Context, _, _ uuid.UUID, _, _ int) ([]models.Message, error) {
	return nil, nil
}

func (f *fakeStore) CreateGroup(_ context.Context, group *models.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	f.groups[group.ID] = group
	f.members[group.ID] = make(map[uuid.UUID]bool)
	for _, m := range group.Members {
		f.members[group.ID][m.ID] = true
	}
	return nil
}

func (f *fakeStore) GroupByID(_ context.Context, id uuid.UUID) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return group, nil
}

func (f *fakeStore) GroupsForUser(_ context.Context, userID uuid.UUID) ([]models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Group
	for gid, members := range f.members {
		if members[userID] {
			out = append(out, *f.groups[gid])
		}
	}
	return out, nil
}

func (f *fakeStore) IsGroupMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[groupID][userID], nil
}

func (f *fakeStore) AddGroupMember(_ context.Context, groupID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[uuid.UUID]bool)
	}
	f.members[groupID][userID] = true
	return nil
}

func (f *fakeStore) RemoveGroupMember(_ context.Context, groupID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeStore) CreateGroupMessage(_ context.Context, msg *models.GroupMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	stored := *msg
	f.groupMessages[msg.ID] = &stored
	return nil
}

func (f *fakeStore) AddGroupMessageReader(_ context.Context, messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readers[messageID] == nil {
		f.readers[messageID] = make(map[uuid.UUID]bool)
	}
	f.readers[messageID][userID] = true
	return nil
}

func (f *fakeStore) GroupHistory(_ context.Context, _ uuid.UUID, _, _ int) ([]models.GroupMessage, error) {
	return nil, nil
}

// failingCoordinator simulates an unreachable coordination store
type failingCoordinator struct{}

func (failingCoordinator) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrStoreUnavailable
}
func (failingCoordinator) Set(context.Context, string, string, time.Duration) error {
	return ErrStoreUnavailable
}
func (failingCoordinator) Del(context.Context, ...string) error       { return ErrStoreUnavailable }
func (failingCoordinator) Exists(context.Context, string) (bool, error) {
	return false, ErrStoreUnavailable
}
func (failingCoordinator) Incr(context.Context, string) (int64, error) {
	return 0, ErrStoreUnavailable
}
func (failingCoordinator) Expire(context.Context, string, time.Duration) error {
	return ErrStoreUnavailable
}
func (failingCoordinator) HIncrBy(context.Context, string, string, int64) error {
	return ErrStoreUnavailable
}
func (failingCoordinator) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, ErrStoreUnavailable
}
func (failingCoordinator) HDel(context.Context, string, ...string) error { return ErrStoreUnavailable }
func (failingCoordinator) SAdd(context.Context, string, ...string) error { return ErrStoreUnavailable }
func (failingCoordinator) SRem(context.Context, string, ...string) error { return ErrStoreUnavailable }
func (failingCoordinator) SMembers(context.Context, string) ([]string, error) {
	return nil, ErrStoreUnavailable
}
func (failingCoordinator) Publish(context.Context, string, string) error { return ErrStoreUnavailable }
func (failingCoordinator) PSubscribe(context.Context, string) (<-chan PubSubMessage, func(), error) {
	return nil, nil, ErrStoreUnavailable
}
func (failingCoordinator) Close() error { return nil }
