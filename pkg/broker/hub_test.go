package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skillswap/realtime/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func TestHubRoomMembership(t *testing.T) {
	hub := NewHub(testLogger())

	c1 := NewClient("u1", nil, testLogger())
	c2 := NewClient("u2", nil, testLogger())
	hub.Add(c1)
	hub.Add(c2)

	hub.Join("r1", "u1")
	hub.Join("r1", "u2")
	hub.Join("r2", "u1")

	assert.Len(t, hub.RoomMembers("r1"), 2)
	assert.Len(t, hub.RoomMembers("r2"), 1)
	assert.Empty(t, hub.RoomMembers("r3"))
}

func TestHubRemoveCleansRooms(t *testing.T) {
	hub := NewHub(testLogger())

	c1 := NewClient("u1", nil, testLogger())
	hub.Add(c1)
	hub.Join("r1", "u1")

	assert.True(t, hub.Remove(c1))
	assert.Empty(t, hub.RoomMembers("r1"))
	assert.Equal(t, 0, hub.Count())

	_, seen := hub.LastSeen("u1")
	assert.True(t, seen)
}

func TestHubRemoveIgnoresReplacedConnection(t *testing.T) {
	hub := NewHub(testLogger())

	old := NewClient("u1", nil, testLogger())
	hub.Add(old)

	// Same user reconnects before the old connection is reaped.
	replacement := NewClient("u1", nil, testLogger())

	// Bypass Add to avoid the websocket eviction on a nil conn.
	hub.mu.Lock()
	hub.clients["u1"] = replacement
	hub.mu.Unlock()

	assert.False(t, hub.Remove(old))
	current, ok := hub.Get("u1")
	assert.True(t, ok)
	assert.Same(t, replacement, current)
}
