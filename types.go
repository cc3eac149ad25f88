package streamfeed

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrUnknownChannel   = errors.New("unknown channel type")
	ErrNilCallback      = errors.New("nil callback")
	ErrAlreadyConnected = errors.New("already connected")
	ErrClosing          = errors.New("client is closing")
)

// Wire method and channel literals.
const (
	methodSubscribe   = "subscribe"
	methodUnsubscribe = "unsubscribe"
	methodPing        = "ping"

	channelPong = "pong"
)

// Handle identifies one registration. Handles are opaque, monotonically
// increasing, and never reused for the lifetime of a Client.
type Handle int64

// Message is one decoded update delivered to channel callbacks.
type Message struct {
	Channel    string          // Canonical channel key the update was routed by
	Data       json.RawMessage // Channel-specific payload body
	ReceivedAt time.Time       // Local timestamp when the frame was read
}

// MessageHandler is a per-channel data callback. Handlers run on the
// single dispatch goroutine, one message at a time, in arrival order.
type MessageHandler func(msg Message)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// command is an outbound control frame.
type command struct {
	Method       string        `json:"method"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// envelope is an inbound data frame.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// dataParams are the routing parameters peeked out of an envelope's data
// body for channels whose canonical key embeds them.
type dataParams struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	User     string `json:"user"`
}

// Config configures a Client.
type Config struct {
	// URL is the WebSocket endpoint of the feed.
	URL string

	// QueueCapacity bounds the dispatch queue. Messages arriving while
	// the queue is full are dropped and counted. Default: 1024.
	QueueCapacity int

	// HeartbeatInterval is how often a ping frame is sent while
	// connected. Default: 50s.
	HeartbeatInterval time.Duration

	// ReconnectMinWait and ReconnectMaxWait bound the exponential
	// backoff between reconnect attempts. Defaults: 1s and 30s.
	ReconnectMinWait time.Duration
	ReconnectMaxWait time.Duration

	// DisableReconnect turns off automatic reconnection after an
	// unexpected disconnect.
	DisableReconnect bool

	// HandshakeTimeout is the dial handshake timeout. Default: 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout is the write deadline for sends. Default: 5s.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:     1024,
		HeartbeatInterval: 50 * time.Second,
		ReconnectMinWait:  1 * time.Second,
		ReconnectMaxWait:  30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.QueueCapacity == 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.ReconnectMinWait == 0 {
		c.ReconnectMinWait = def.ReconnectMinWait
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = def.ReconnectMaxWait
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

// Stats is a point-in-time snapshot of client state.
type Stats struct {
	State           State
	ActiveChannels  int
	ActiveHandles   int
	QueueDepth      int
	DroppedMessages int64
}
