package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/models"
)

type chatFixture struct {
	store    *fakeStore
	presence *PresenceService
	hub      *Hub
	engine   *ChatEngine
}

func newChatFixture() *chatFixture {
	coord := NewMemoryCoordinator(nil)
	cfg := testConfig()
	logger := testLogger()
	hub := NewHub(logger)
	store := newFakeStore()
	presence := NewPresenceService(coord, cfg, logger)
	limiter := NewRateLimiter(coord, logger)
	return &chatFixture{
		store:    store,
		presence: presence,
		hub:      hub,
		engine:   NewChatEngine(store, presence, limiter, hub, cfg, logger),
	}
}

// connect registers a user with both the hub and the directory, the way the
// gateway does on handshake
func (f *chatFixture) connect(userID uuid.UUID) *Client {
	c := newTestClient(f.hub, userID.String())
	_ = f.presence.RegisterConnection(context.Background(), c.UserID, c.ID)
	return c
}

func TestSendToOfflineRecipient(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	x, y := uuid.New(), uuid.New()
	sender := f.connect(x)

	err := f.engine.SendPrivate(ctx, sender, models.PrivateMessagePayload{To: y.String(), Text: "hi"})
	require.NoError(t, err)

	// Sender gets an undelivered confirmation
	env := nextFrame(t, sender)
	assert.Equal(t, models.EventMessageSent, env.Event)
	var ack models.MessageSentPayload
	decodeData(t, env, &ack)
	assert.False(t, ack.Delivered)

	// State stays sent, unread counter increments by one
	msg := f.store.messages[uuid.MustParse(ack.MessageID)]
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStateSent, msg.State)

	counts, err := f.presence.UnreadCounts(ctx, y.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[x.String()])
}

func TestSendToOnlineRecipient(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	x, y := uuid.New(), uuid.New()
	sender := f.connect(x)
	recipient := f.connect(y)

	err := f.engine.SendPrivate(ctx, sender, models.PrivateMessagePayload{To: y.String(), Text: "hi"})
	require.NoError(t, err)

	// Recipient receives the message immediately
	env := nextFrame(t, recipient)
	require.Equal(t, models.EventReceiveMessage, env.Event)
	var received models.ReceiveMessagePayload
	decodeData(t, env, &received)
	assert.Equal(t, "hi", received.Text)
	assert.Equal(t, x.String(), received.From)

	// Sender gets a delivered confirmation and the record moved on
	env = nextFrame(t, sender)
	assert.Equal(t, models.EventMessageDelivered, env.Event)

	msg := f.store.messages[uuid.MustParse(received.ID)]
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStateDelivered, msg.State)
}

func TestSendRejectsInvalidPayload(t *testing.T) {
	f := newChatFixture()
	sender := f.connect(uuid.New())

	err := f.engine.SendPrivate(context.Background(), sender, models.PrivateMessagePayload{To: "", Text: "hi"})
	assert.Error(t, err)
	assert.Empty(t, f.store.messages)
}

func TestPrivateMessageRateLimit(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	x, y := uuid.New(), uuid.New()
	sender := f.connect(x)

	// 20 messages inside the window succeed, the 21st is rejected
	for i := 0; i < 20; i++ {
		require.NoError(t, f.engine.SendPrivate(ctx, sender, models.PrivateMessagePayload{To: y.String(), Text: "hi"}))
	}
	err := f.engine.SendPrivate(ctx, sender, models.PrivateMessagePayload{To: y.String(), Text: "hi"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, f.store.messages, 20)
}

func TestRateLimiterFailOpenPreservesMessaging(t *testing.T) {
	cfg := testConfig()
	logger := testLogger()
	hub := NewHub(logger)
	store := newFakeStore()
	presence := NewPresenceService(NewMemoryCoordinator(nil), cfg, logger)
	limiter := NewRateLimiter(failingCoordinator{}, logger)
	engine := NewChatEngine(store, presence, limiter, hub, cfg, logger)

	sender := newTestClient(hub, uuid.NewString())
	err := engine.SendPrivate(context.Background(), sender, models.PrivateMessagePayload{To: uuid.NewString(), Text: "hi"})
	assert.NoError(t, err)
	assert.Len(t, store.messages, 1)
}

func TestRateLimiterFailClosedWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitFailOpen = false
	logger := testLogger()
	hub := NewHub(logger)
	store := newFakeStore()
	presence := NewPresenceService(NewMemoryCoordinator(nil), cfg, logger)
	limiter := NewRateLimiter(failingCoordinator{}, logger)
	engine := NewChatEngine(store, presence, limiter, hub, cfg, logger)

	sender := newTestClient(hub, uuid.NewString())
	err := engine.SendPrivate(context.Background(), sender, models.PrivateMessagePayload{To: uuid.NewString(), Text: "hi"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, store.messages)
}

func TestReadReceiptFiresExactlyOnce(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	x, y := uuid.New(), uuid.New()
	sender := f.connect(x)
	recipient := f.connect(y)

	require.NoError(t, f.engine.SendPrivate(ctx, sender, models.PrivateMessagePayload{To: y.String(), Text: "hi"}))
	received := nextFrame(t, recipient)
	var payload models.ReceiveMessagePayload
	decodeData(t, received, &payload)
	nextFrame(t, sender) // delivered ack

	// First read produces one receipt
	require.NoError(t, f.engine.MarkRead(ctx, recipient, models.MessageReadPayload{MessageID: payload.ID}))
	receipt := nextFrame(t, sender)
	require.Equal(t, models.EventMessageReadReceipt, receipt.Event)
	var rr models.MessageReadReceiptPayload
	decodeData(t, receipt, &rr)
	assert.Equal(t, y.String(), rr.ReadBy)

	// Re-acknowledging is a no-op: no second receipt
	require.NoError(t, f.engine.MarkRead(ctx, recipient, models.MessageReadPayload{MessageID: payload.ID}))
	assert.Zero(t, frameCount(sender))

	// State never regresses
	msg := f.store.messages[uuid.MustParse(payload.ID)]
	assert.Equal(t, models.MessageStateRead, msg.State)
}

func TestMarkReadUnknownMessageIsNoOp(t *testing.T) {
	f := newChatFixture()
	reader := f.connect(uuid.New())

	require.NoError(t, f.engine.MarkRead(context.Background(), reader, models.MessageReadPayload{MessageID: uuid.NewString()}))
	require.NoError(t, f.engine.MarkRead(context.Background(), reader, models.MessageReadPayload{MessageID: "not-a-uuid"}))
	assert.Zero(t, frameCount(reader))
}

func TestDeliveredTransitionIsMonotonic(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	id := uuid.New()
	msg := &models.Message{ID: id, FromID: uuid.New(), ToID: uuid.New(), Text: "x", State: models.MessageStateSent}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	_, transitioned, err := f.store.MarkMessageRead(ctx, id, msg.CreatedAt)
	require.NoError(t, err)
	require.True(t, transitioned)

	// delivered after read must not regress the state
	require.NoError(t, f.store.MarkMessageDelivered(ctx, id))
	assert.Equal(t, models.MessageStateRead, f.store.messages[id].State)
}
