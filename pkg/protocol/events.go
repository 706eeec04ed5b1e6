package protocol

// EventName identifies an application-level event on the wire
type EventName string

// Client-to-broker events
const (
	EventHeartbeat    EventName = "heartbeat"
	EventJoinChat     EventName = "join_chat"
	EventSendMessage  EventName = "send_message"
	EventMarkRead     EventName = "mark_message_read"
	EventCallInitiate EventName = "call:initiate"
	EventCallAnswer   EventName = "call:answer"
	EventCallICE      EventName = "call:ice-candidate"
	EventCallReject   EventName = "call:reject"
	EventCallEnd      EventName = "call:end"
)

// Broker-to-client events
const (
	EventReceiveMessage EventName = "receive_message"
	EventMessageSent    EventName = "message_sent"
	EventError          EventName = "error"
	EventMessageRead    EventName = "message_read"
	EventCallIncoming   EventName = "call:incoming"
	EventCallAccepted   EventName = "call:accepted"
	EventCallRejected   EventName = "call:rejected"
	EventCallEnded      EventName = "call:ended"
)

// Presence events. The enriched *_status forms carry last-seen data;
// the bare forms are kept for brokers that predate them.
const (
	EventUserOnlineStatus  EventName = "user_online_status"
	EventUserOfflineStatus EventName = "user_offline_status"
	EventUserOnline        EventName = "user_online"
	EventUserOffline       EventName = "user_offline"
)
