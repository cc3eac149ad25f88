package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn represents a single WebSocket session to the feed endpoint.
type Conn interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Frames returns a channel of raw inbound frames.
	Frames() <-chan Frame

	// Errors returns a channel of connection errors. A value here means
	// the read loop has stopped and the session is dead.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// SessionID identifies this session in logs and recorded rows.
	SessionID() string
}

// conn implements the Conn interface.
type conn struct {
	cfg    Config
	logger *slog.Logger
	id     string

	ws *websocket.Conn

	// Output channels
	frames chan Frame
	errors chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// New creates a new WebSocket session. Each session gets its own ID.
func New(cfg Config, logger *slog.Logger) Conn {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()

	return &conn{
		cfg:    cfg,
		logger: logger.With("session", id),
		id:     id,
		frames: make(chan Frame, cfg.FrameBufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop.
func (c *conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection. Safe to call more than once.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	ws := c.ws
	c.mu.Unlock()

	// Signal the read loop to stop
	close(c.done)

	if ws != nil {
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return ws.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the inbound frames channel.
func (c *conn) Frames() <-chan Frame {
	return c.frames
}

// Errors returns the errors channel.
func (c *conn) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SessionID returns this session's ID.
func (c *conn) SessionID() string {
	return c.id
}

// readLoop reads frames from the WebSocket and delivers them on the
// frames channel until the connection dies or Close is called.
func (c *conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.frames)
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
			}
			select {
			case c.errors <- err:
			default:
			}
			return
		}

		frame := Frame{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		// Blocking handoff: the consumer decides what to shed, so frame
		// loss is accounted for in exactly one place.
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}
