package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// PresenceUpdate is the canonical presence shape delivered to subscribers.
// Last write wins per user; no history is retained.
type PresenceUpdate struct {
	UserID     string     `json:"userId"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// presenceWire accepts both the legacy and the enriched presence payloads.
// IsOnline is a pointer so a missing field can fall back to the event name.
type presenceWire struct {
	UserID     string     `json:"userId"`
	IsOnline   *bool      `json:"isOnline,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// NormalizePresence converts any of the four presence event forms into the
// canonical PresenceUpdate. Both server generations must stay supported:
// older brokers emit the bare user_online/user_offline pair, newer ones the
// enriched *_status events.
func NormalizePresence(event EventName, data json.RawMessage) (PresenceUpdate, error) {
	var wire presenceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return PresenceUpdate{}, err
	}

	update := PresenceUpdate{
		UserID:     wire.UserID,
		LastSeenAt: wire.LastSeenAt,
		Timestamp:  wire.Timestamp,
	}

	switch event {
	case EventUserOnline:
		update.IsOnline = true
	case EventUserOffline:
		update.IsOnline = false
	case EventUserOnlineStatus, EventUserOfflineStatus:
		if wire.IsOnline != nil {
			update.IsOnline = *wire.IsOnline
		} else {
			update.IsOnline = event == EventUserOnlineStatus
		}
	default:
		return PresenceUpdate{}, fmt.Errorf("not a presence event: %s", event)
	}

	return update, nil
}

// IsPresenceEvent reports whether the event carries presence data
func IsPresenceEvent(event EventName) bool {
	switch event {
	case EventUserOnline, EventUserOffline, EventUserOnlineStatus, EventUserOfflineStatus:
		return true
	}
	return false
}
