package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"typing","data":{"to":"u1","isTyping":true}}`))
	require.NoError(t, err)
	assert.Equal(t, EventTyping, env.Event)

	var payload TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "u1", payload.To)
	assert.True(t, payload.IsTyping)
}

func TestDecodeEnvelopeRejectsBadFrames(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestPayloadValidation(t *testing.T) {
	assert.Error(t, PrivateMessagePayload{To: "u1"}.Validate())
	assert.Error(t, PrivateMessagePayload{Text: "hi"}.Validate())
	assert.NoError(t, PrivateMessagePayload{To: "u1", Text: "hi"}.Validate())

	assert.Error(t, MessageReadPayload{}.Validate())
	assert.NoError(t, MessageReadPayload{MessageID: "m1"}.Validate())

	assert.Error(t, TypingPayload{}.Validate())
	assert.NoError(t, TypingPayload{To: "u1"}.Validate())

	assert.Error(t, JoinGroupPayload{}.Validate())
	assert.NoError(t, JoinGroupPayload{GroupID: "g1"}.Validate())

	assert.Error(t, GroupMessagePayload{GroupID: "g1"}.Validate())
	assert.NoError(t, GroupMessagePayload{GroupID: "g1", Text: "hi"}.Validate())
}
