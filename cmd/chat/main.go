package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/skillswap/realtime/internal/config"
	"github.com/skillswap/realtime/internal/logging"
	skerrors "github.com/skillswap/realtime/pkg/errors"
	"github.com/skillswap/realtime/pkg/protocol"
	"github.com/skillswap/realtime/pkg/realtime"
)

func main() {
	var (
		userID   = flag.String("user", "", "user id for this session")
		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -user <id>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: *logLevel, Format: "pretty"})

	tokenSource := realtime.NewHTTPTokenSource(cfg.Client.TokenURL)
	tokenSource.Header = http.Header{"X-User-ID": {*userID}}

	client := realtime.NewClient(realtime.Options{
		BrokerURL:   cfg.Client.BrokerURL,
		TokenSource: tokenSource,
		Logger:      logger,
	})

	client.OnMessage(func(msg protocol.ChatMessage) {
		fmt.Printf("[%s] %s: %s\n", msg.ConnectionID, msg.SenderID, msg.Content)
	})
	client.OnMessageRead(func(receipt protocol.ReadReceipt) {
		fmt.Printf("[%s] %s read %s\n", receipt.ConnectionID, receipt.ReaderID, receipt.MessageID)
	})
	client.OnPresence(func(update protocol.PresenceUpdate) {
		status := "offline"
		if update.IsOnline {
			status = "online"
		}
		fmt.Printf("* %s is %s\n", update.UserID, status)
	})
	client.OnIncomingCall(func(invite protocol.CallInvite) {
		fmt.Printf("* incoming %s call from %s (room %s)\n", invite.CallType, invite.CallerID, invite.ConnectionID)
	})
	client.OnCallEnded(func(end protocol.CallEnd) {
		fmt.Printf("* call ended by %s (room %s)\n", end.EndedBy, end.ConnectionID)
	})
	client.OnError(func(err *skerrors.Error) {
		fmt.Printf("! %s\n", err.Message)
	})
	client.OnConnectionChange(func(connected bool) {
		if connected {
			fmt.Println("* connected")
		} else {
			fmt.Println("* disconnected")
		}
	})

	client.Connect()
	defer client.Disconnect()

	fmt.Println("commands: join <room> | send <room> <text> | call <user> <room> | hangup <user> <room> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "join":
			if len(fields) < 2 {
				continue
			}
			client.JoinChat(fields[1])

		case "send":
			if len(fields) < 3 {
				continue
			}
			client.SendMessage(protocol.ChatMessage{
				ConnectionID: fields[1],
				Content:      strings.Join(fields[2:], " "),
				SentAt:       time.Now(),
			})

		case "call":
			if len(fields) < 3 {
				continue
			}
			client.InitiateCall(protocol.CallRequest{
				RecipientID: fields[1],
				CallType:    protocol.CallTypeAudio,
				RoomName:    fields[2],
			})

		case "hangup":
			if len(fields) < 3 {
				continue
			}
			client.EndCall(protocol.CallEnd{
				ParticipantID: fields[1],
				ConnectionID:  fields[2],
			})

		case "quit":
			return

		default:
			fmt.Println("unknown command")
		}
	}
}
