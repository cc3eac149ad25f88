package streamfeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/streamfeed/internal/transport"
)

// warnCounter counts warn-level log records.
type warnCounter struct {
	n atomic.Int64
}

func (h *warnCounter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *warnCounter) Handle(_ context.Context, _ slog.Record) error {
	h.n.Add(1)
	return nil
}

func (h *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnCounter) WithGroup(string) slog.Handler      { return h }

func tradeFrame(seq int) transport.Frame {
	return transport.Frame{
		Data:       []byte(fmt.Sprintf(`{"channel":"trades","data":{"symbol":"btc","seq":%d}}`, seq)),
		ReceivedAt: time.Now(),
	}
}

func TestRoute_OverflowAccounting(t *testing.T) {
	cfg := Config{URL: "ws://127.0.0.1:0", QueueCapacity: 2}
	c := New(cfg, discardLogger())

	// No dispatch worker is running, so the queue fills and stays full.
	for i := 0; i < 3; i++ {
		c.route(tradeFrame(i))
	}

	if got := c.DroppedMessages(); got != 1 {
		t.Errorf("DroppedMessages() = %d, want 1", got)
	}

	// The queue keeps its older items; the newest was the one dropped.
	for i := 0; i < 2; i++ {
		msg, ok := c.q.Receive()
		if !ok {
			t.Fatalf("queue closed early at item %d", i)
		}
		want := fmt.Sprintf(`{"symbol":"btc","seq":%d}`, i)
		if string(msg.Data) != want {
			t.Errorf("item %d = %s, want %s", i, msg.Data, want)
		}
	}
	if c.q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", c.q.Len())
	}
}

func TestRoute_DropDiagnosticsCadence(t *testing.T) {
	counter := &warnCounter{}
	cfg := Config{URL: "ws://127.0.0.1:0", QueueCapacity: 1}
	c := New(cfg, slog.New(counter))

	// One frame fills the queue, then 101 excess frames are dropped.
	// Diagnostics fire on drop #1 and drop #100 only.
	for i := 0; i < 102; i++ {
		c.route(tradeFrame(i))
	}

	if got := c.DroppedMessages(); got != 101 {
		t.Errorf("DroppedMessages() = %d, want 101", got)
	}
	if got := counter.n.Load(); got != 2 {
		t.Errorf("drop diagnostics = %d, want 2", got)
	}
}

func TestRoute_BenignRaceNoCallbacks(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:0"}, discardLogger())

	// A message for a channel nobody is subscribed to anymore is
	// discarded by the dispatch loop without error.
	c.route(tradeFrame(0))

	done := make(chan struct{})
	go c.dispatchLoop(c.q, done)

	c.q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch loop did not drain and exit")
	}
}
