package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/realtime/internal/logging"
)

// Defaults for the connection lifecycle. These match the behavior of the
// deployed web clients; override them through Options only when a test or
// an unusual network environment needs to.
const (
	// DefaultHeartbeatInterval is how often an application-level
	// heartbeat is emitted while connected. Intermediary proxies and
	// load balancers drop idle connections well before TCP notices, so
	// the heartbeat keeps NAT/proxy state alive and lets the broker
	// evict stale clients.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultInitialBackoff is the delay before the first reconnect attempt
	DefaultInitialBackoff = time.Second

	// DefaultMaxBackoff caps the exponential reconnect delay
	DefaultMaxBackoff = 5 * time.Second

	// DefaultMaxReconnect is the number of consecutive failed attempts
	// after which the client gives up and reports a terminal error
	DefaultMaxReconnect = 10
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultReadTimeout  = 60 * time.Second
	maxMessageSize      = 512 * 1024
	sendBufferSize      = 256
)

// Options configures a realtime Client
type Options struct {
	// BrokerURL is the websocket endpoint of the messaging broker
	BrokerURL string

	// TokenSource issues the short-lived credential presented at connect
	// time. A fresh credential is fetched for every attempt.
	TokenSource TokenSource

	Logger *logging.Logger
	Dialer *websocket.Dialer

	HeartbeatInterval time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MaxReconnect      int
}

// withDefaults fills in zero-valued options
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.MaxReconnect <= 0 {
		o.MaxReconnect = DefaultMaxReconnect
	}
	return o
}

// backoffDelay returns the reconnect delay after the given number of
// consecutive failures: min(initial * 2^attempt, max).
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt >= 32 {
		return max
	}
	d := initial << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}
