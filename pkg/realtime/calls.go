package realtime

import (
	"github.com/skillswap/realtime/pkg/protocol"
)

// Call signaling is a pure relay: intents become events on the shared
// connection and inbound signaling fans out unmodified. Call-session
// correlation by connectionId, and all media/ICE logic, belong to the
// consumer. Every send silently no-ops while disconnected and reports
// through the error feed.

// InitiateCall announces an outbound call attempt to the recipient
func (c *Client) InitiateCall(req protocol.CallRequest) {
	c.send(protocol.EventCallInitiate, req)
}

// AnswerCall accepts an incoming call
func (c *Client) AnswerCall(answer protocol.CallAnswer) {
	c.send(protocol.EventCallAnswer, answer)
}

// SendICECandidate relays a single ICE candidate. Call it once per
// candidate as they are discovered.
func (c *Client) SendICECandidate(candidate protocol.CallCandidate) {
	c.send(protocol.EventCallICE, candidate)
}

// RejectCall declines an incoming call
func (c *Client) RejectCall(reject protocol.CallReject) {
	c.send(protocol.EventCallReject, reject)
}

// EndCall hangs up, notifying the other participant
func (c *Client) EndCall(end protocol.CallEnd) {
	c.send(protocol.EventCallEnd, end)
}

// OnIncomingCall subscribes to inbound call invitations
func (c *Client) OnIncomingCall(fn func(protocol.CallInvite)) func() {
	return c.callIncoming.On(fn)
}

// OnCallAccepted subscribes to call acceptance events
func (c *Client) OnCallAccepted(fn func(protocol.CallAnswer)) func() {
	return c.callAccepted.On(fn)
}

// OnCallCandidate subscribes to relayed ICE candidates
func (c *Client) OnCallCandidate(fn func(protocol.CallCandidate)) func() {
	return c.callCandidate.On(fn)
}

// OnCallRejected subscribes to call rejection events
func (c *Client) OnCallRejected(fn func(protocol.CallReject)) func() {
	return c.callRejected.On(fn)
}

// OnCallEnded subscribes to hangup events
func (c *Client) OnCallEnded(fn func(protocol.CallEnd)) func() {
	return c.callEnded.On(fn)
}
