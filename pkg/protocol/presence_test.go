package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/realtime/pkg/protocol"
)

func TestNormalizePresenceLegacyForms(t *testing.T) {
	update, err := protocol.NormalizePresence(protocol.EventUserOnline,
		json.RawMessage(`{"userId":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", update.UserID)
	assert.True(t, update.IsOnline)
	assert.Nil(t, update.LastSeenAt)

	update, err = protocol.NormalizePresence(protocol.EventUserOffline,
		json.RawMessage(`{"userId":"u1","lastSeenAt":"2026-08-30T12:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", update.UserID)
	assert.False(t, update.IsOnline)
	require.NotNil(t, update.LastSeenAt)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), update.LastSeenAt.UTC())
}

func TestNormalizePresenceEnrichedForms(t *testing.T) {
	update, err := protocol.NormalizePresence(protocol.EventUserOnlineStatus,
		json.RawMessage(`{"userId":"u2","isOnline":false,"timestamp":"2026-08-30T12:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "u2", update.UserID)
	assert.False(t, update.IsOnline, "explicit isOnline wins over the event name")
	require.NotNil(t, update.Timestamp)

	// A missing isOnline falls back to the event name.
	update, err = protocol.NormalizePresence(protocol.EventUserOfflineStatus,
		json.RawMessage(`{"userId":"u3"}`))
	require.NoError(t, err)
	assert.False(t, update.IsOnline)

	update, err = protocol.NormalizePresence(protocol.EventUserOnlineStatus,
		json.RawMessage(`{"userId":"u4"}`))
	require.NoError(t, err)
	assert.True(t, update.IsOnline)
}

func TestNormalizePresenceRejectsOtherEvents(t *testing.T) {
	_, err := protocol.NormalizePresence(protocol.EventReceiveMessage,
		json.RawMessage(`{"userId":"u1"}`))
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := protocol.NewEnvelope(protocol.EventSendMessage, protocol.ChatMessage{
		ConnectionID: "r1",
		Content:      "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)

	data, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventSendMessage, decoded.Event)

	var msg protocol.ChatMessage
	require.NoError(t, decoded.Decode(&msg))
	assert.Equal(t, "r1", msg.ConnectionID)
	assert.Equal(t, "hello", msg.Content)
}
