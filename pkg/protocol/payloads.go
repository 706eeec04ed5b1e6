package protocol

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// CallType distinguishes audio-only from video calls
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// ChatMessage is a chat message as carried on the wire. The content is
// opaque to the realtime layer; only ConnectionID is used for routing.
type ChatMessage struct {
	ID           string    `json:"id,omitempty"`
	ConnectionID string    `json:"connectionId"`
	SenderID     string    `json:"senderId,omitempty"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sentAt,omitempty"`
}

// JoinChat asks the broker to subscribe this client to a room
type JoinChat struct {
	ConnectionID string `json:"connectionId"`
}

// ReadReceipt marks a message as read within a room
type ReadReceipt struct {
	MessageID    string `json:"messageId"`
	ConnectionID string `json:"connectionId"`
	ReaderID     string `json:"readerId,omitempty"`
}

// ErrorNotice is a free-form error message from the broker
type ErrorNotice struct {
	Message string `json:"message"`
}

// CallRequest announces an outbound call attempt
type CallRequest struct {
	RecipientID string                     `json:"recipientId"`
	CallType    CallType                   `json:"callType"`
	RoomName    string                     `json:"roomName"`
	Offer       *webrtc.SessionDescription `json:"offer,omitempty"`
}

// CallInvite is the inbound counterpart of CallRequest
type CallInvite struct {
	ConnectionID string                     `json:"connectionId"`
	CallerID     string                     `json:"callerId"`
	CallType     CallType                   `json:"callType"`
	Offer        *webrtc.SessionDescription `json:"offer,omitempty"`
}

// CallAnswer accepts an incoming call
type CallAnswer struct {
	CallerID     string                     `json:"callerId"`
	ConnectionID string                     `json:"connectionId"`
	CalleeID     string                     `json:"calleeId,omitempty"`
	Answer       *webrtc.SessionDescription `json:"answer,omitempty"`
}

// CallCandidate relays one ICE candidate. Candidates are sent one at a
// time as they are discovered, never batched.
type CallCandidate struct {
	To           string                  `json:"to"`
	From         string                  `json:"from,omitempty"`
	ConnectionID string                  `json:"connectionId"`
	Candidate    webrtc.ICECandidateInit `json:"candidate"`
}

// CallReject declines an incoming call
type CallReject struct {
	CallerID     string `json:"callerId"`
	ConnectionID string `json:"connectionId"`
	RejectedBy   string `json:"rejectedBy,omitempty"`
}

// CallEnd hangs up an established call
type CallEnd struct {
	ParticipantID string `json:"participantId"`
	ConnectionID  string `json:"connectionId"`
	EndedBy       string `json:"endedBy,omitempty"`
}
