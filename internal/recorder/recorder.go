package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	streamfeed "github.com/rickgao/streamfeed"
	"github.com/rickgao/streamfeed/internal/config"
)

// Recorder batch-inserts feed updates into the feed_updates table.
type Recorder struct {
	cfg    config.RecorderConfig
	logger *slog.Logger
	db     *pgxpool.Pool

	// runID tags every row written by this process lifetime.
	runID uuid.UUID

	// Batching
	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// row is one feed update to be inserted.
type row struct {
	RunID      uuid.UUID
	Channel    string
	Payload    []byte
	ReceivedAt time.Time
}

// Metrics holds recorder counters.
type Metrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}

// New creates a Recorder writing to db.
func New(cfg config.RecorderConfig, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		logger: logger,
		db:     db,
		runID:  uuid.New(),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Handler returns the data callback to register with the feed client.
func (r *Recorder) Handler() streamfeed.MessageHandler {
	return func(msg streamfeed.Message) {
		r.add(msg)
	}
}

// Start begins the periodic flush loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"run_id", r.runID,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the flush loop and writes whatever is still batched.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Final flush
	r.flush()

	r.logger.Info("recorder stopped")
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// add transforms and batches one update, flushing when the batch fills.
func (r *Recorder) add(msg streamfeed.Message) {
	rw := r.transform(msg)

	r.batchMu.Lock()
	r.batch = append(r.batch, rw)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush()
	}
}

// transform converts a feed message to a row.
func (r *Recorder) transform(msg streamfeed.Message) row {
	return row{
		RunID:      r.runID,
		Channel:    msg.Channel,
		Payload:    msg.Data,
		ReceivedAt: msg.ReceivedAt,
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of the current batch
	batch := r.batch
	r.batch = make([]row, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	if err := r.batchInsert(batch); err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch))
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed updates",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch. Inserts run outside the
// lifecycle context so a Stop-triggered final flush still completes.
func (r *Recorder) batchInsert(rows []row) error {
	batch := &pgx.Batch{}
	for _, rw := range rows {
		batch.Queue(`
			INSERT INTO feed_updates (run_id, channel, payload, received_at)
			VALUES ($1, $2, $3, $4)
		`, rw.RunID, rw.Channel, rw.Payload, rw.ReceivedAt)
	}

	results := r.db.SendBatch(context.Background(), batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
