// Package realtime implements the client side of the platform's messaging
// layer: one persistent websocket multiplexing chat delivery, presence,
// read receipts and call signaling, with automatic reconnection and
// heartbeating. A Client is created once per authenticated session and
// shared by every UI surface that needs realtime events.
package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/realtime/internal/logging"
	"github.com/skillswap/realtime/pkg/dispatch"
	"github.com/skillswap/realtime/pkg/errors"
	"github.com/skillswap/realtime/pkg/protocol"
)

// State represents the connection lifecycle state
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Client owns the single broker connection for a session. All sends go
// through it and all inbound events fan out through its On* feeds; no
// other component touches the underlying connection.
type Client struct {
	options Options
	logger  *logging.Logger

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	sendChan       chan []byte
	gen            int
	attempt        int
	reconnectTimer *time.Timer
	closed         bool

	messages      *dispatch.Feed[protocol.ChatMessage]
	sent          *dispatch.Feed[protocol.ChatMessage]
	errs          *dispatch.Feed[*errors.Error]
	presence      *dispatch.Feed[protocol.PresenceUpdate]
	reads         *dispatch.Feed[protocol.ReadReceipt]
	callIncoming  *dispatch.Feed[protocol.CallInvite]
	callAccepted  *dispatch.Feed[protocol.CallAnswer]
	callCandidate *dispatch.Feed[protocol.CallCandidate]
	callRejected  *dispatch.Feed[protocol.CallReject]
	callEnded     *dispatch.Feed[protocol.CallEnd]
	connChange    *dispatch.Feed[bool]
}

// NewClient creates a client. It does not connect; call Connect once the
// session is established.
func NewClient(options Options) *Client {
	options = options.withDefaults()

	return &Client{
		options:       options,
		logger:        options.Logger,
		messages:      dispatch.NewFeed[protocol.ChatMessage](),
		sent:          dispatch.NewFeed[protocol.ChatMessage](),
		errs:          dispatch.NewFeed[*errors.Error](),
		presence:      dispatch.NewFeed[protocol.PresenceUpdate](),
		reads:         dispatch.NewFeed[protocol.ReadReceipt](),
		callIncoming:  dispatch.NewFeed[protocol.CallInvite](),
		callAccepted:  dispatch.NewFeed[protocol.CallAnswer](),
		callCandidate: dispatch.NewFeed[protocol.CallCandidate](),
		callRejected:  dispatch.NewFeed[protocol.CallReject](),
		callEnded:     dispatch.NewFeed[protocol.CallEnd](),
		connChange:    dispatch.NewFeed[bool](),
	}
}

// Connect fetches a fresh credential and opens the broker connection.
// It is idempotent: a no-op while already connected or connecting.
// A failed credential fetch aborts the attempt without retry; transport
// failures are retried with capped exponential backoff.
func (c *Client) Connect() {
	c.connect(false)
}

// connect runs one connection attempt. Automatic attempts (the backoff
// timer) must never resurrect a session after an explicit Disconnect, so
// only a caller-initiated attempt clears the closed flag; an automatic
// one aborts on it instead. The dial-success check below covers a
// Disconnect that lands mid-dial.
func (c *Client) connect(auto bool) {
	c.mu.Lock()
	if c.state != StateDisconnected || (auto && c.closed) {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	if !auto {
		c.closed = false
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	token, err := c.options.TokenSource.Token(ctx)
	if err != nil {
		// No retry here; the next explicit Connect/Reconnect tries again.
		c.logger.Error("credential fetch failed, aborting connect", "error", err)
		c.setDisconnected()
		return
	}

	endpoint, err := dialURL(c.options.BrokerURL, token)
	if err != nil {
		c.logger.Error("invalid broker URL", "url", c.options.BrokerURL, "error", err)
		c.setDisconnected()
		return
	}

	conn, resp, err := c.options.Dialer.Dial(endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("broker dial failed", "error", err)
		c.setDisconnected()
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect raced the dial; drop the fresh connection.
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.state = StateConnected
	c.conn = conn
	c.attempt = 0
	c.gen++
	gen := c.gen
	c.sendChan = make(chan []byte, sendBufferSize)
	sendChan := c.sendChan
	c.mu.Unlock()

	c.logger.Info("connected to broker", "url", c.options.BrokerURL)

	go c.readPump(conn, gen)
	go c.writePump(conn, sendChan)

	c.connChange.Emit(true)
}

// Disconnect tears the connection down: stops the heartbeat, cancels any
// pending reconnect and closes the transport. Safe to call in any state;
// call it on every exit path so timers and sockets are not leaked.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.state != StateConnected {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	conn := c.conn
	sendChan := c.sendChan
	c.conn = nil
	c.sendChan = nil
	c.state = StateDisconnected
	c.gen++
	c.mu.Unlock()

	c.logger.Info("disconnecting from broker")

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	conn.Close()
	close(sendChan)

	c.connChange.Emit(false)
}

// Reconnect manually triggers a connection attempt. A no-op while
// connected; otherwise it restarts the retry budget and connects.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.attempt = 0
	c.mu.Unlock()

	c.Connect()
}

// IsConnected reports whether the broker connection is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// JoinChat subscribes this client to a chat room
func (c *Client) JoinChat(connectionID string) {
	c.send(protocol.EventJoinChat, protocol.JoinChat{ConnectionID: connectionID})
}

// SendMessage sends a chat message. Fire-and-forget: delivery
// acknowledgement arrives separately on the OnMessageSent feed.
func (c *Client) SendMessage(msg protocol.ChatMessage) {
	c.send(protocol.EventSendMessage, msg)
}

// MarkMessageAsRead reports a read receipt for a message in a room
func (c *Client) MarkMessageAsRead(messageID, connectionID string) {
	c.send(protocol.EventMarkRead, protocol.ReadReceipt{
		MessageID:    messageID,
		ConnectionID: connectionID,
	})
}

// OnMessage subscribes to inbound chat messages
func (c *Client) OnMessage(fn func(protocol.ChatMessage)) func() {
	return c.messages.On(fn)
}

// OnMessageSent subscribes to send acknowledgements
func (c *Client) OnMessageSent(fn func(protocol.ChatMessage)) func() {
	return c.sent.On(fn)
}

// OnError subscribes to the error channel. Every failure the user should
// know about flows through here; public operations never return errors
// for expected failure modes.
func (c *Client) OnError(fn func(*errors.Error)) func() {
	return c.errs.On(fn)
}

// OnPresence subscribes to normalized online/offline updates
func (c *Client) OnPresence(fn func(protocol.PresenceUpdate)) func() {
	return c.presence.On(fn)
}

// OnMessageRead subscribes to read receipts
func (c *Client) OnMessageRead(fn func(protocol.ReadReceipt)) func() {
	return c.reads.On(fn)
}

// OnConnectionChange subscribes to connection state transitions; the
// value is the new IsConnected state.
func (c *Client) OnConnectionChange(fn func(bool)) func() {
	return c.connChange.On(fn)
}

// send marshals and queues an outbound event. While disconnected it drops
// the event and reports through the error feed instead of failing the
// caller.
func (c *Client) send(event protocol.EventName, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		c.errs.Emit(errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE", "failed to encode outbound event"))
		return
	}
	data, err := env.Marshal()
	if err != nil {
		c.errs.Emit(errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE", "failed to encode outbound event"))
		return
	}

	c.mu.Lock()
	if c.state != StateConnected || c.sendChan == nil {
		c.mu.Unlock()
		c.logger.Warn("dropping send while disconnected", "event", event)
		c.errs.Emit(errors.New(errors.ErrorTypeTransport, "NOT_CONNECTED",
			fmt.Sprintf("cannot send %s: not connected", event)))
		return
	}

	select {
	case c.sendChan <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.errs.Emit(errors.New(errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full"))
	}
}

// readPump reads frames until the connection drops, then classifies the
// failure and drives the reconnect state machine.
func (c *Client) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(err, gen)
			return
		}
		conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		c.handleFrame(data)
	}
}

// writePump drains the send queue and emits heartbeats. It exits when the
// send channel is closed or a write fails; the read pump owns reporting
// the failure.
func (c *Client) writePump(conn *websocket.Conn, sendChan chan []byte) {
	ticker := time.NewTicker(c.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sendChan:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			env, err := protocol.NewEnvelope(protocol.EventHeartbeat, nil)
			if err != nil {
				continue
			}
			data, err := env.Marshal()
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("heartbeat write error", "error", err)
				return
			}
		}
	}
}

// handleDrop tears down after a read failure. A close initiated by the
// server is authoritative (credential revoked, duplicate session) and is
// terminal for the session; anything else schedules a reconnect.
func (c *Client) handleDrop(err error, gen int) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateConnected {
		// Already torn down by Disconnect.
		c.mu.Unlock()
		return
	}
	conn := c.conn
	sendChan := c.sendChan
	c.conn = nil
	c.sendChan = nil
	c.state = StateDisconnected
	c.gen++
	c.mu.Unlock()

	conn.Close()
	close(sendChan)

	c.connChange.Emit(false)

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
		c.logger.Info("server closed the connection", "reason", err)
		c.errs.Emit(errors.New(errors.ErrorTypeTransport, "SERVER_CLOSED",
			"connection closed by the server; sign in again to reconnect"))
		return
	}

	c.logger.Warn("connection lost", "error", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt, or emits
// the terminal error once the retry budget is spent.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempt >= c.options.MaxReconnect {
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "attempts", c.options.MaxReconnect)
		c.errs.Emit(errors.New(errors.ErrorTypeTransport, "RECONNECT_EXHAUSTED",
			"connection lost; refresh the page to reconnect"))
		return
	}

	delay := backoffDelay(c.attempt, c.options.InitialBackoff, c.options.MaxBackoff)
	c.attempt++
	attempt := c.attempt
	c.reconnectTimer = time.AfterFunc(delay, func() { c.connect(true) })
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// setDisconnected resets the state after a failed connect attempt
func (c *Client) setDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// handleFrame decodes one inbound frame and fans it out to the matching
// feed. Events of one class reach subscribers in arrival order; nothing
// is buffered or reordered.
func (c *Client) handleFrame(data []byte) {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		c.logger.Error("failed to decode frame", "error", err)
		return
	}

	if protocol.IsPresenceEvent(env.Event) {
		update, err := protocol.NormalizePresence(env.Event, env.Data)
		if err != nil {
			c.logger.Error("invalid presence payload", "event", env.Event, "error", err)
			return
		}
		c.presence.Emit(update)
		return
	}

	switch env.Event {
	case protocol.EventReceiveMessage:
		var msg protocol.ChatMessage
		if c.decode(env, &msg) {
			c.messages.Emit(msg)
		}

	case protocol.EventMessageSent:
		var msg protocol.ChatMessage
		if c.decode(env, &msg) {
			c.sent.Emit(msg)
		}

	case protocol.EventMessageRead:
		var receipt protocol.ReadReceipt
		if c.decode(env, &receipt) {
			c.reads.Emit(receipt)
		}

	case protocol.EventError:
		var notice protocol.ErrorNotice
		if c.decode(env, &notice) {
			c.errs.Emit(errors.New(errors.ErrorTypeTransport, "BROKER_ERROR", notice.Message))
		}

	case protocol.EventCallIncoming:
		var invite protocol.CallInvite
		if c.decode(env, &invite) {
			c.callIncoming.Emit(invite)
		}

	case protocol.EventCallAccepted:
		var answer protocol.CallAnswer
		if c.decode(env, &answer) {
			c.callAccepted.Emit(answer)
		}

	case protocol.EventCallICE:
		var candidate protocol.CallCandidate
		if c.decode(env, &candidate) {
			c.callCandidate.Emit(candidate)
		}

	case protocol.EventCallRejected:
		var reject protocol.CallReject
		if c.decode(env, &reject) {
			c.callRejected.Emit(reject)
		}

	case protocol.EventCallEnded:
		var end protocol.CallEnd
		if c.decode(env, &end) {
			c.callEnded.Emit(end)
		}

	default:
		c.logger.Debug("unhandled event", "event", env.Event)
	}
}

// decode unmarshals an envelope payload, logging instead of failing
func (c *Client) decode(env *protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		c.logger.Error("invalid payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

// dialURL appends the credential to the broker endpoint
func dialURL(brokerURL, token string) (string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
