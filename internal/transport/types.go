package transport

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Frame wraps raw frame bytes with a receive timestamp.
type Frame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Config configures a WebSocket session.
type Config struct {
	URL              string        // WebSocket URL (e.g., wss://feed.example.com/ws)
	HandshakeTimeout time.Duration // Dial handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	FrameBufferSize  int           // Frames channel buffer size (smoothing only; never drops)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		FrameBufferSize:  1000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.FrameBufferSize == 0 {
		c.FrameBufferSize = def.FrameBufferSize
	}
	return c
}
