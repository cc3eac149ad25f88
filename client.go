package streamfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/streamfeed/internal/queue"
	"github.com/rickgao/streamfeed/internal/transport"
)

// dispatchJoinTimeout bounds how long Close waits for the dispatch
// worker. Close may be called from inside a data callback, in which case
// the worker cannot exit until Close returns.
const dispatchJoinTimeout = 2 * time.Second

// dropLogInterval controls drop diagnostics: the first drop and every
// 100th after are logged, so sustained overload does not flood the log.
const dropLogInterval = 100

// Client is a managed subscription client for one feed endpoint.
//
// Subscriptions survive reconnects: they are replayed on every new
// session, not recreated by the caller.
type Client struct {
	cfg    Config
	logger *slog.Logger

	reg *registry

	// Serializes registry mutations with the control frames they owe, so
	// an unsubscribe can never overtake the subscribe it cancels.
	ctrlMu sync.Mutex

	// Lifecycle callbacks. One per event; last registration wins.
	cbMu    sync.Mutex
	onOpen  func()
	onClose func()
	onError func(error)

	state        atomic.Int32
	dropped      atomic.Int64
	reconnecting atomic.Bool

	// Sticky shutdown latch. The state value is transient (Close ends at
	// Disconnected), so the supervisor and establish consult this flag
	// instead; Connect re-arms it when the caller explicitly reopens.
	closed atomic.Bool

	// Guards the session and worker lifecycle below.
	mu           sync.Mutex
	conn         transport.Conn
	q            *queue.Bounded[Message]
	dispatchDone chan struct{}
	closing      chan struct{}
}

// New creates a Client. It does not connect; call Connect, or just
// Subscribe and let the first Connect replay what was registered.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		reg:    newRegistry(),
		q:      queue.NewBounded[Message](cfg.QueueCapacity),
	}
}

// Connect opens the WebSocket session, flushes subscriptions registered
// while disconnected, and starts the dispatch and heartbeat workers.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		if State(c.state.Load()) == StateClosing {
			return ErrClosing
		}
		return ErrAlreadyConnected
	}
	c.closed.Store(false)

	c.mu.Lock()
	if c.q == nil {
		// Reopened after Close.
		c.q = queue.NewBounded[Message](c.cfg.QueueCapacity)
	}
	if c.dispatchDone == nil {
		c.dispatchDone = make(chan struct{})
		c.closing = make(chan struct{})
		go c.dispatchLoop(c.q, c.dispatchDone)
		go c.heartbeatLoop(c.closing)
	}
	c.mu.Unlock()

	conn, err := c.establish(ctx)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}

	go c.pumpLoop(conn)
	return nil
}

// Close shuts the client down: stops the heartbeat, terminates the
// dispatch worker, and closes the transport. Idempotent, and safe to
// call from any goroutine, including inside a lifecycle or data
// callback. Automatic reconnection is suppressed.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.state.Store(int32(StateClosing))

	c.mu.Lock()
	closing := c.closing
	c.closing = nil
	q := c.q
	c.q = nil
	done := c.dispatchDone
	c.dispatchDone = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if closing != nil {
		// Stops the heartbeat without waiting out its tick and aborts
		// any supervisor backoff sleep.
		close(closing)
	}
	if q != nil {
		// Wakes the blocked dispatch worker with the closed signal.
		q.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(dispatchJoinTimeout):
			c.logger.Warn("dispatch worker did not exit before timeout")
		}
	}
	if conn != nil {
		conn.Close()
	}

	c.state.Store(int32(StateDisconnected))
	return nil
}

// IsConnected reports whether the client currently holds an open session.
func (c *Client) IsConnected() bool {
	return State(c.state.Load()) == StateConnected
}

// isClosing reports whether an explicit Close has happened or is in
// progress. The latch outlives the transient Closing state value.
func (c *Client) isClosing() bool {
	return c.closed.Load() || State(c.state.Load()) == StateClosing
}

// DroppedMessages returns the number of messages discarded because the
// dispatch queue was full. Monotonic, never reset, non-blocking.
func (c *Client) DroppedMessages() int64 {
	return c.dropped.Load()
}

// Stats returns a snapshot of client state.
func (c *Client) Stats() Stats {
	keys, handles := c.reg.counts()

	c.mu.Lock()
	q := c.q
	c.mu.Unlock()

	depth := 0
	if q != nil {
		depth = q.Len()
	}

	return Stats{
		State:           State(c.state.Load()),
		ActiveChannels:  keys,
		ActiveHandles:   handles,
		QueueDepth:      depth,
		DroppedMessages: c.dropped.Load(),
	}
}

// OnOpen registers the open lifecycle callback.
func (c *Client) OnOpen(fn func()) {
	c.cbMu.Lock()
	c.onOpen = fn
	c.cbMu.Unlock()
}

// OnClose registers the close lifecycle callback.
func (c *Client) OnClose(fn func()) {
	c.cbMu.Lock()
	c.onClose = fn
	c.cbMu.Unlock()
}

// OnError registers the error lifecycle callback.
func (c *Client) OnError(fn func(error)) {
	c.cbMu.Lock()
	c.onError = fn
	c.cbMu.Unlock()
}

// Subscribe registers fn for the channel described by sub and returns a
// handle for Unsubscribe. Multiple registrations for the same canonical
// key share one wire subscription. Registrations made while disconnected
// are flushed when a connection opens.
func (c *Client) Subscribe(sub Subscription, fn MessageHandler) (Handle, error) {
	key, err := sub.Key()
	if err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, ErrNilCallback
	}

	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	h, first := c.reg.register(sub, key, fn)
	if first && c.IsConnected() {
		c.sendCommand(methodSubscribe, &sub)
	}

	c.logger.Debug("subscribed", "channel", key, "handle", int64(h))
	return h, nil
}

// Unsubscribe removes the registration for h. Unknown handles are a
// no-op. An unsubscribe frame goes out only when the last callback for
// the channel is removed.
func (c *Client) Unsubscribe(h Handle) {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	sub, last := c.reg.unregister(h)
	if last && c.IsConnected() {
		c.sendCommand(methodUnsubscribe, &sub)
	}
}

// establish dials a fresh session and brings it to the open state:
// replay first, then the Connected flip, then the open callback. Shared
// by Connect and the reconnect supervisor so both take the same path.
func (c *Client) establish(ctx context.Context) (transport.Conn, error) {
	conn := transport.New(transport.Config{
		URL:              c.cfg.URL,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		WriteTimeout:     c.cfg.WriteTimeout,
	}, c.logger)

	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.isClosing() {
		c.mu.Unlock()
		conn.Close()
		return nil, ErrClosing
	}
	c.conn = conn
	c.mu.Unlock()

	// Replay every active channel on the new session. Replay order is
	// unspecified; nothing downstream depends on it. Holding ctrlMu
	// across the replay and the Connected flip pins down concurrent
	// registrations: a Subscribe either lands before the snapshot and is
	// replayed, or blocks until the flip, observes Connected, and sends
	// its own frame. Nothing can fall between.
	c.ctrlMu.Lock()
	for _, sub := range c.reg.activeSpecs() {
		c.sendCommand(methodSubscribe, &sub)
	}
	c.state.Store(int32(StateConnected))
	c.ctrlMu.Unlock()

	c.logger.Info("feed connected", "session", conn.SessionID(), "url", c.cfg.URL)

	c.fireOpen()
	return conn, nil
}

// pumpLoop translates one session's inbound frames into queued messages
// and observes the session's death. One pump runs per session.
func (c *Client) pumpLoop(conn transport.Conn) {
	for {
		select {
		case frame, ok := <-conn.Frames():
			if !ok {
				// Read loop ended; surface its error if one is pending.
				select {
				case err := <-conn.Errors():
					c.fireError(err)
				default:
				}
				c.handleDisconnect(conn)
				return
			}
			c.route(frame)

		case err := <-conn.Errors():
			c.fireError(err)
			c.handleDisconnect(conn)
			return
		}
	}
}

// route decodes an inbound frame and enqueues it for dispatch.
// Undecodable frames, heartbeat acks, and unroutable tags are expected
// noise from a best-effort push feed and are dropped silently.
func (c *Client) route(frame transport.Frame) {
	var env envelope
	if err := json.Unmarshal(frame.Data, &env); err != nil {
		// e.g. the bare connection-acknowledgement string
		return
	}
	if env.Channel == "" || env.Channel == channelPong {
		return
	}

	var params dataParams
	if len(env.Data) > 0 {
		// Best effort: non-object bodies leave params empty.
		json.Unmarshal(env.Data, &params)
	}

	key, err := (Subscription{
		Type:     env.Channel,
		Symbol:   params.Symbol,
		Interval: params.Interval,
		User:     params.User,
	}).Key()
	if err != nil {
		// No routing rule for this tag.
		return
	}

	c.mu.Lock()
	q := c.q
	c.mu.Unlock()
	if q == nil {
		return
	}

	msg := Message{Channel: key, Data: env.Data, ReceivedAt: frame.ReceivedAt}
	if !q.TrySend(msg) {
		n := c.dropped.Add(1)
		if n == 1 || n%dropLogInterval == 0 {
			c.logger.Warn("dispatch queue full, dropping message",
				"channel", key,
				"dropped_total", n,
			)
		}
	}
}

// handleDisconnect runs when a session dies. An explicit Close
// suppresses reconnection; anything else hands off to the supervisor.
func (c *Client) handleDisconnect(conn transport.Conn) {
	conn.Close()

	closing := c.isClosing()
	if !closing {
		c.state.Store(int32(StateDisconnected))
		c.logger.Warn("feed disconnected", "session", conn.SessionID())
	}

	c.fireClose()

	if closing || c.cfg.DisableReconnect {
		return
	}

	// One supervisor at a time; a second disconnect while reconnection
	// is already in progress must not spawn another loop.
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	closingCh := c.closing
	c.mu.Unlock()
	if closingCh == nil {
		c.reconnecting.Store(false)
		return
	}

	go c.superviseReconnect(closingCh)
}

// superviseReconnect retries connection establishment with exponential
// backoff until it succeeds or the client starts closing. Attempts are
// unbounded: the client stays alive and self-heals until Close.
func (c *Client) superviseReconnect(closing <-chan struct{}) {
	defer c.reconnecting.Store(false)

	for attempt := 0; ; attempt++ {
		if c.isClosing() {
			return
		}

		wait := c.backoff(attempt)
		c.logger.Info("reconnecting", "attempt", attempt, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-closing:
			timer.Stop()
			return
		case <-timer.C:
		}
		if c.isClosing() {
			return
		}

		c.state.Store(int32(StateConnecting))
		conn, err := c.establish(context.Background())
		if err != nil {
			if !c.isClosing() {
				c.state.Store(int32(StateDisconnected))
			}
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		go c.pumpLoop(conn)
		return
	}
}

// backoff returns min(minWait << attempt, maxWait).
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.ReconnectMinWait
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= c.cfg.ReconnectMaxWait {
			return c.cfg.ReconnectMaxWait
		}
	}
	return wait
}

// dispatchLoop is the single worker that delivers queued messages to
// registered callbacks in arrival order. It exits when the queue closes.
func (c *Client) dispatchLoop(q *queue.Bounded[Message], done chan struct{}) {
	defer close(done)

	for {
		msg, ok := q.Receive()
		if !ok {
			return
		}

		// No callbacks means the subscription was removed after the
		// message was enqueued: a benign race, not an error.
		for _, fn := range c.reg.callbacksFor(msg.Channel) {
			c.invoke(fn, msg)
		}
	}
}

// invoke runs one callback, isolating panics so a faulty callback cannot
// stop delivery to the others or kill the worker.
func (c *Client) invoke(fn MessageHandler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscription callback panicked",
				"channel", msg.Channel,
				"panic", r,
			)
		}
	}()
	fn(msg)
}

// heartbeatLoop sends a keep-alive ping each interval while connected.
// Ticks while disconnected are skipped, not errors.
func (c *Client) heartbeatLoop(closing <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closing:
			return
		case <-ticker.C:
			if !c.IsConnected() {
				continue
			}
			c.sendCommand(methodPing, nil)
		}
	}
}

// sendCommand serializes a control frame and writes it to the transport.
// Write failures are logged, not raised: a transient failure is subsumed
// by the next disconnect/reconnect cycle.
func (c *Client) sendCommand(method string, sub *Subscription) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(command{Method: method, Subscription: sub})
	if err != nil {
		c.logger.Error("marshal control frame", "method", method, "error", err)
		return
	}

	if err := conn.Send(data); err != nil {
		c.logger.Warn("write control frame", "method", method, "error", err)
	}
}

func (c *Client) fireOpen() {
	c.cbMu.Lock()
	fn := c.onOpen
	c.cbMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) fireClose() {
	c.cbMu.Lock()
	fn := c.onClose
	c.cbMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) fireError(err error) {
	c.cbMu.Lock()
	fn := c.onError
	c.cbMu.Unlock()
	if fn != nil {
		fn(err)
	}
}
