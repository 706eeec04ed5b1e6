package broker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/skillswap/realtime/pkg/errors"
	"github.com/skillswap/realtime/pkg/protocol"
	"github.com/skillswap/realtime/pkg/realtime"
)

type testEnv struct {
	t    *testing.T
	srv  *httptest.Server
	hub  *Hub
	auth *Authenticator
}

func newTestEnv(t *testing.T) *testEnv {
	logger := testLogger()
	auth := NewAuthenticator("test-secret", 90*time.Second)
	hub := NewHub(logger)
	server := NewServer(hub, auth, logger)

	mux := http.NewServeMux()
	mux.Handle("/realtime/token", auth.TokenHandler())
	mux.Handle("/ws", server)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, srv: srv, hub: hub, auth: auth}
}

// user connects a realtime client authenticated as the given user
func (e *testEnv) user(userID string) *realtime.Client {
	source := realtime.NewHTTPTokenSource(e.srv.URL + "/realtime/token")
	source.Header = http.Header{"X-User-ID": {userID}}

	client := realtime.NewClient(realtime.Options{
		BrokerURL:         "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws",
		TokenSource:       source,
		Logger:            testLogger(),
		HeartbeatInterval: time.Hour,
		InitialBackoff:    5 * time.Millisecond,
	})

	client.Connect()
	require.True(e.t, client.IsConnected())
	e.t.Cleanup(client.Disconnect)

	require.Eventually(e.t, func() bool {
		_, ok := e.hub.Get(userID)
		return ok
	}, time.Second, 5*time.Millisecond)

	return client
}

func (e *testEnv) waitRoomSize(roomID string, n int) {
	require.Eventually(e.t, func() bool {
		return len(e.hub.RoomMembers(roomID)) == n
	}, time.Second, 5*time.Millisecond)
}

func TestChatDelivery(t *testing.T) {
	env := newTestEnv(t)

	alice := env.user("u1")
	bob := env.user("u2")

	received := make(chan protocol.ChatMessage, 2)
	acked := make(chan protocol.ChatMessage, 2)
	bob.OnMessage(func(msg protocol.ChatMessage) { received <- msg })
	alice.OnMessageSent(func(msg protocol.ChatMessage) { acked <- msg })

	alice.JoinChat("r1")
	bob.JoinChat("r1")
	env.waitRoomSize("r1", 2)

	alice.SendMessage(protocol.ChatMessage{ConnectionID: "r1", Content: "hello bob"})

	select {
	case msg := <-received:
		assert.Equal(t, "r1", msg.ConnectionID)
		assert.Equal(t, "u1", msg.SenderID)
		assert.Equal(t, "hello bob", msg.Content)
		assert.NotEmpty(t, msg.ID, "broker assigns an id")
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}

	select {
	case ack := <-acked:
		assert.Equal(t, "hello bob", ack.Content)
		assert.NotEmpty(t, ack.ID)
	case <-time.After(time.Second):
		t.Fatal("sender never acknowledged")
	}
}

func TestReadReceiptsRelayedToRoom(t *testing.T) {
	env := newTestEnv(t)

	alice := env.user("u1")
	bob := env.user("u2")

	reads := make(chan protocol.ReadReceipt, 2)
	alice.OnMessageRead(func(r protocol.ReadReceipt) { reads <- r })

	alice.JoinChat("r1")
	bob.JoinChat("r1")
	env.waitRoomSize("r1", 2)

	bob.MarkMessageAsRead("m42", "r1")

	select {
	case receipt := <-reads:
		assert.Equal(t, "m42", receipt.MessageID)
		assert.Equal(t, "r1", receipt.ConnectionID)
		assert.Equal(t, "u2", receipt.ReaderID)
	case <-time.After(time.Second):
		t.Fatal("read receipt never delivered")
	}
}

func TestPresenceBroadcast(t *testing.T) {
	env := newTestEnv(t)

	alice := env.user("u1")

	updates := make(chan protocol.PresenceUpdate, 8)
	alice.OnPresence(func(u protocol.PresenceUpdate) {
		// Alice's own announcement may still be in flight; only watch Bob.
		if u.UserID == "u2" {
			updates <- u
		}
	})

	bob := env.user("u2")

	select {
	case update := <-updates:
		assert.Equal(t, "u2", update.UserID)
		assert.True(t, update.IsOnline)
		require.NotNil(t, update.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no online announcement")
	}

	bob.Disconnect()

	select {
	case update := <-updates:
		assert.Equal(t, "u2", update.UserID)
		assert.False(t, update.IsOnline)
		require.NotNil(t, update.LastSeenAt)
	case <-time.After(time.Second):
		t.Fatal("no offline announcement")
	}
}

func TestCallSignalingFlow(t *testing.T) {
	env := newTestEnv(t)

	alice := env.user("u1")
	bob := env.user("u2")

	invites := make(chan protocol.CallInvite, 2)
	accepts := make(chan protocol.CallAnswer, 2)
	candidates := make(chan protocol.CallCandidate, 2)
	ended := make(chan protocol.CallEnd, 2)

	bob.OnIncomingCall(func(i protocol.CallInvite) { invites <- i })
	alice.OnCallAccepted(func(a protocol.CallAnswer) { accepts <- a })
	alice.OnCallCandidate(func(c protocol.CallCandidate) { candidates <- c })
	bob.OnCallEnded(func(e protocol.CallEnd) { ended <- e })

	alice.InitiateCall(protocol.CallRequest{
		RecipientID: "u2",
		CallType:    protocol.CallTypeVideo,
		RoomName:    "call-1",
	})

	var invite protocol.CallInvite
	select {
	case invite = <-invites:
		assert.Equal(t, "call-1", invite.ConnectionID)
		assert.Equal(t, "u1", invite.CallerID)
		assert.Equal(t, protocol.CallTypeVideo, invite.CallType)
	case <-time.After(time.Second):
		t.Fatal("no incoming call")
	}

	bob.AnswerCall(protocol.CallAnswer{
		CallerID:     invite.CallerID,
		ConnectionID: invite.ConnectionID,
	})

	select {
	case answer := <-accepts:
		assert.Equal(t, "call-1", answer.ConnectionID)
		assert.Equal(t, "u2", answer.CalleeID)
	case <-time.After(time.Second):
		t.Fatal("caller never saw the answer")
	}

	bob.SendICECandidate(protocol.CallCandidate{
		To:           "u1",
		ConnectionID: "call-1",
		Candidate:    webrtc.ICECandidateInit{Candidate: "candidate:0 1 UDP 2122 192.0.2.1 50000 typ host"},
	})

	select {
	case candidate := <-candidates:
		assert.Equal(t, "call-1", candidate.ConnectionID)
		assert.Equal(t, "u2", candidate.From)
		assert.Contains(t, candidate.Candidate.Candidate, "typ host")
	case <-time.After(time.Second):
		t.Fatal("candidate never relayed")
	}

	alice.EndCall(protocol.CallEnd{ParticipantID: "u2", ConnectionID: "call-1"})

	select {
	case end := <-ended:
		assert.Equal(t, "call-1", end.ConnectionID)
		assert.Equal(t, "u1", end.EndedBy)
	case <-time.After(time.Second):
		t.Fatal("hangup never relayed")
	}
}

func TestCallToOfflineUserReportsError(t *testing.T) {
	env := newTestEnv(t)

	alice := env.user("u1")

	errs := make(chan *skerrors.Error, 2)
	alice.OnError(func(err *skerrors.Error) { errs <- err })

	alice.InitiateCall(protocol.CallRequest{
		RecipientID: "ghost",
		CallType:    protocol.CallTypeAudio,
		RoomName:    "call-1",
	})

	select {
	case err := <-errs:
		assert.Equal(t, "BROKER_ERROR", err.Code)
	case <-time.After(time.Second):
		t.Fatal("no error for offline recipient")
	}
}

func TestDuplicateSessionEvicted(t *testing.T) {
	env := newTestEnv(t)

	first := env.user("u1")

	errs := make(chan *skerrors.Error, 2)
	first.OnError(func(err *skerrors.Error) { errs <- err })

	second := env.user("u1")
	_ = second

	// The evicted client sees an authoritative close and must not retry.
	select {
	case err := <-errs:
		assert.Equal(t, "SERVER_CLOSED", err.Code)
	case <-time.After(time.Second):
		t.Fatal("evicted session saw no terminal error")
	}

	require.Eventually(t, func() bool { return !first.IsConnected() },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, env.hub.Count())
}

func TestConnectionRejectedWithoutValidToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/ws?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
