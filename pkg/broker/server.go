// Package broker implements the reference messaging broker: the server
// half of the realtime layer. It authenticates connections with
// short-lived credentials, tracks presence, and routes chat and call
// signaling between connected users. It keeps no history; persistence
// belongs to the platform's CRUD services.
package broker

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/skillswap/realtime/internal/logging"
	"github.com/skillswap/realtime/pkg/protocol"
)

// Server upgrades websocket connections and routes the event vocabulary
type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	auth     *Authenticator
	logger   *logging.Logger
}

// NewServer creates a broker server
func NewServer(hub *Hub, auth *Authenticator, logger *logging.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin is enforced by the gateway
			},
		},
		hub:    hub,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler for the websocket endpoint
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.Verify(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warn("rejecting connection", "error", err)
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(userID, conn, s.logger)
	s.hub.Add(client)
	client.Start(s.handleFrame, s.handleClose)

	s.logger.Info("client connected", "user_id", userID, "clients", s.hub.Count())

	s.announcePresence(userID, true)
}

// handleClose runs when a connection drops for any reason
func (s *Server) handleClose(client *Client) {
	if !s.hub.Remove(client) {
		// Evicted by a newer session for the same user; still online.
		return
	}
	s.logger.Info("client disconnected", "user_id", client.UserID(), "clients", s.hub.Count())
	s.announcePresence(client.UserID(), false)
}

// handleFrame routes one inbound frame from a client
func (s *Server) handleFrame(client *Client, data []byte) {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		s.logger.Error("failed to decode frame", "user_id", client.UserID(), "error", err)
		s.sendError(client, "malformed message")
		return
	}

	switch env.Event {
	case protocol.EventHeartbeat:
		s.hub.Touch(client.UserID())

	case protocol.EventJoinChat:
		var join protocol.JoinChat
		if err := env.Decode(&join); err != nil {
			s.sendError(client, "invalid join_chat payload")
			return
		}
		s.hub.Join(join.ConnectionID, client.UserID())

	case protocol.EventSendMessage:
		s.handleSendMessage(client, env)

	case protocol.EventMarkRead:
		s.handleMarkRead(client, env)

	case protocol.EventCallInitiate:
		s.handleCallInitiate(client, env)

	case protocol.EventCallAnswer:
		s.handleCallAnswer(client, env)

	case protocol.EventCallICE:
		s.handleCallCandidate(client, env)

	case protocol.EventCallReject:
		s.handleCallReject(client, env)

	case protocol.EventCallEnd:
		s.handleCallEnd(client, env)

	default:
		s.logger.Debug("unhandled event", "event", env.Event, "user_id", client.UserID())
	}
}

func (s *Server) handleSendMessage(client *Client, env *protocol.Envelope) {
	var msg protocol.ChatMessage
	if err := env.Decode(&msg); err != nil {
		s.sendError(client, "invalid message payload")
		return
	}
	if msg.ConnectionID == "" {
		s.sendError(client, "message has no room")
		return
	}

	msg.SenderID = client.UserID()
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	for _, member := range s.hub.RoomMembers(msg.ConnectionID) {
		if member.UserID() == client.UserID() {
			continue
		}
		s.push(member, protocol.EventReceiveMessage, msg)
	}

	// Acknowledge back to the sender with the assigned id.
	s.push(client, protocol.EventMessageSent, msg)
}

func (s *Server) handleMarkRead(client *Client, env *protocol.Envelope) {
	var receipt protocol.ReadReceipt
	if err := env.Decode(&receipt); err != nil {
		s.sendError(client, "invalid read receipt payload")
		return
	}

	receipt.ReaderID = client.UserID()
	for _, member := range s.hub.RoomMembers(receipt.ConnectionID) {
		if member.UserID() == client.UserID() {
			continue
		}
		s.push(member, protocol.EventMessageRead, receipt)
	}
}

func (s *Server) handleCallInitiate(client *Client, env *protocol.Envelope) {
	var req protocol.CallRequest
	if err := env.Decode(&req); err != nil {
		s.sendError(client, "invalid call payload")
		return
	}

	recipient, ok := s.hub.Get(req.RecipientID)
	if !ok {
		s.sendError(client, "user is not available for calls")
		return
	}

	roomName := req.RoomName
	if roomName == "" {
		roomName = uuid.NewString()
	}

	s.push(recipient, protocol.EventCallIncoming, protocol.CallInvite{
		ConnectionID: roomName,
		CallerID:     client.UserID(),
		CallType:     req.CallType,
		Offer:        req.Offer,
	})
}

func (s *Server) handleCallAnswer(client *Client, env *protocol.Envelope) {
	var answer protocol.CallAnswer
	if err := env.Decode(&answer); err != nil {
		s.sendError(client, "invalid call answer payload")
		return
	}

	caller, ok := s.hub.Get(answer.CallerID)
	if !ok {
		s.sendError(client, "caller is no longer connected")
		return
	}

	answer.CalleeID = client.UserID()
	s.push(caller, protocol.EventCallAccepted, answer)
}

func (s *Server) handleCallCandidate(client *Client, env *protocol.Envelope) {
	var candidate protocol.CallCandidate
	if err := env.Decode(&candidate); err != nil {
		s.sendError(client, "invalid ice candidate payload")
		return
	}

	target, ok := s.hub.Get(candidate.To)
	if !ok {
		return // candidates for a gone peer are dropped silently
	}

	candidate.From = client.UserID()
	s.push(target, protocol.EventCallICE, candidate)
}

func (s *Server) handleCallReject(client *Client, env *protocol.Envelope) {
	var reject protocol.CallReject
	if err := env.Decode(&reject); err != nil {
		s.sendError(client, "invalid call reject payload")
		return
	}

	caller, ok := s.hub.Get(reject.CallerID)
	if !ok {
		return
	}

	reject.RejectedBy = client.UserID()
	s.push(caller, protocol.EventCallRejected, reject)
}

func (s *Server) handleCallEnd(client *Client, env *protocol.Envelope) {
	var end protocol.CallEnd
	if err := env.Decode(&end); err != nil {
		s.sendError(client, "invalid call end payload")
		return
	}

	participant, ok := s.hub.Get(end.ParticipantID)
	if !ok {
		return
	}

	end.EndedBy = client.UserID()
	s.push(participant, protocol.EventCallEnded, end)
}

// announcePresence broadcasts a presence change to everyone connected.
// Clients keep no presence cache, so the broker re-announces on every
// connect; a reconnecting client is refreshed naturally.
func (s *Server) announcePresence(userID string, online bool) {
	now := time.Now()
	update := protocol.PresenceUpdate{
		UserID:    userID,
		IsOnline:  online,
		Timestamp: &now,
	}

	event := protocol.EventUserOnlineStatus
	if !online {
		event = protocol.EventUserOfflineStatus
		if last, ok := s.hub.LastSeen(userID); ok {
			update.LastSeenAt = &last
		}
	}

	env, err := protocol.NewEnvelope(event, update)
	if err != nil {
		return
	}
	data, err := env.Marshal()
	if err != nil {
		return
	}
	s.hub.Broadcast(data)
}

// push encodes and queues an event for one client
func (s *Server) push(client *Client, event protocol.EventName, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		s.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	data, err := env.Marshal()
	if err != nil {
		s.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	client.Send(data)
}

// sendError reports a failure to a client through the error event
func (s *Server) sendError(client *Client, message string) {
	s.push(client, protocol.EventError, protocol.ErrorNotice{Message: message})
}
