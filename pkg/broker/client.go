package broker

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/realtime/internal/logging"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 90 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512 * 1024
)

// Client represents one connected user on the broker side
type Client struct {
	userID string
	conn   *websocket.Conn
	logger *logging.Logger

	sendChan chan []byte
	handler  func(*Client, []byte)
	onClose  func(*Client)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewClient wraps an upgraded websocket connection
func NewClient(userID string, conn *websocket.Conn, logger *logging.Logger) *Client {
	return &Client{
		userID:   userID,
		conn:     conn,
		logger:   logger.WithFields(map[string]any{"user_id": userID}),
		sendChan: make(chan []byte, 256),
	}
}

// UserID returns the identity bound to this connection
func (c *Client) UserID() string {
	return c.userID
}

// Send queues a message for delivery. Returns false if the connection is
// closed or the buffer is full.
func (c *Client) Send(message []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.sendChan <- message:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		c.logger.Warn("send buffer full, dropping message")
		return false
	}
}

// Start begins the read and write pumps
func (c *Client) Start(handler func(*Client, []byte), onClose func(*Client)) {
	c.handler = handler
	c.onClose = onClose
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// Close tears the connection down; safe to call more than once.
// closeCode lets the broker signal an authoritative close (for example a
// duplicate session) that clients must not retry.
func (c *Client) Close(closeCode int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if closeCode != 0 {
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCode, reason), deadline)
	}

	c.conn.Close()
	close(c.sendChan)

	if c.onClose != nil {
		c.onClose(c)
	}
}

func (c *Client) readPump() {
	defer c.wg.Done()
	defer c.Close(0, "")

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if c.handler != nil {
			c.handler(c, message)
		}
	}
}

func (c *Client) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
