// Package protocol defines the wire contract between realtime clients and
// the messaging broker: named events with JSON payloads carried in a thin
// envelope. Field names are camelCase to match the platform's web clients.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// Envelope represents a single message frame on the transport
type Envelope struct {
	ID        string          `json:"id"`
	Event     EventName       `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope creates an envelope carrying the given payload
func NewEnvelope(event EventName, payload any) (*Envelope, error) {
	env := &Envelope{
		ID:        xid.New().String(),
		Event:     event,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}

	return env, nil
}

// Decode decodes the envelope payload into the provided value
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Marshal marshals the envelope to bytes
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal unmarshals bytes into an envelope
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
