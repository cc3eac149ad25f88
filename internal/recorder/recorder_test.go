package recorder

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	streamfeed "github.com/rickgao/streamfeed"
	"github.com/rickgao/streamfeed/internal/config"
)

func testRecorder(batchSize int) *Recorder {
	cfg := config.RecorderConfig{
		BatchSize:     batchSize,
		FlushInterval: time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, nil, logger)
}

func TestTransform(t *testing.T) {
	r := testRecorder(100)

	receivedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	payload := json.RawMessage(`{"coin":"btc","side":"B","px":"64000.5"}`)

	rw := r.transform(streamfeed.Message{
		Channel:    "trades:btc",
		Data:       payload,
		ReceivedAt: receivedAt,
	})

	if rw.RunID != r.runID {
		t.Errorf("RunID = %v, want %v", rw.RunID, r.runID)
	}
	if rw.Channel != "trades:btc" {
		t.Errorf("Channel = %q, want %q", rw.Channel, "trades:btc")
	}
	if string(rw.Payload) != string(payload) {
		t.Errorf("Payload = %s, want %s", rw.Payload, payload)
	}
	if !rw.ReceivedAt.Equal(receivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", rw.ReceivedAt, receivedAt)
	}
}

func TestHandlerBatchesBelowThreshold(t *testing.T) {
	r := testRecorder(100)
	handler := r.Handler()

	for i := 0; i < 5; i++ {
		handler(streamfeed.Message{
			Channel:    "allMids",
			Data:       json.RawMessage(`{}`),
			ReceivedAt: time.Now(),
		})
	}

	r.batchMu.Lock()
	got := len(r.batch)
	r.batchMu.Unlock()

	if got != 5 {
		t.Errorf("batch length = %d, want 5", got)
	}

	stats := r.Stats()
	if stats.Inserts != 0 || stats.Flushes != 0 {
		t.Errorf("Stats() = %+v, want zero before any flush", stats)
	}
}

func TestFlushEmptyBatchIsNoop(t *testing.T) {
	r := testRecorder(100)

	// Must not touch the nil pool when there is nothing to write.
	r.flush()

	stats := r.Stats()
	if stats.Flushes != 0 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v, want zero", stats)
	}
}

func TestRunIDIsStablePerRecorder(t *testing.T) {
	r := testRecorder(100)

	a := r.transform(streamfeed.Message{Channel: "allMids"})
	b := r.transform(streamfeed.Message{Channel: "trades:eth"})

	if a.RunID != b.RunID {
		t.Errorf("run IDs differ within one recorder: %v vs %v", a.RunID, b.RunID)
	}

	other := testRecorder(100)
	c := other.transform(streamfeed.Message{Channel: "allMids"})
	if c.RunID == a.RunID {
		t.Error("distinct recorders share a run ID")
	}
}
