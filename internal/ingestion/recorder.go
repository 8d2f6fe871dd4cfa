// Package ingestion buffers raw ticks and flushes them to the archive
// store in batches. The archive is strictly best-effort: a failed flush
// is logged and dropped, never propagated to the feed.
package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
)

const (
	// DefaultBatchSize triggers a flush once this many ticks are buffered.
	DefaultBatchSize = 1000
	// DefaultFlushInterval flushes whatever is buffered on this cadence.
	DefaultFlushInterval = 5 * time.Second
	// flushTimeout bounds one bulk write. Add flushes inline on the feed
	// goroutine, so a wedged archive must not stall tick intake.
	flushTimeout = 5 * time.Second
)

// Recorder accumulates ticks and writes them to a TickStore in bulk.
type Recorder struct {
	store         storage.TickStore
	batchSize     int
	flushInterval time.Duration
	logger        *log.Logger

	mu  sync.Mutex
	buf []*domain.Tick
}

// Options contains configuration for creating a Recorder.
type Options struct {
	Store         storage.TickStore
	BatchSize     int           // defaults to DefaultBatchSize
	FlushInterval time.Duration // defaults to DefaultFlushInterval
	Logger        *log.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Recorder{
		store:         opts.Store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		buf:           make([]*domain.Tick, 0, batchSize),
	}
}

// Add buffers one tick. When the buffer reaches the batch size it is
// flushed inline on the caller's goroutine.
func (r *Recorder) Add(tick *domain.Tick) {
	r.mu.Lock()
	r.buf = append(r.buf, tick)
	full := len(r.buf) >= r.batchSize
	r.mu.Unlock()

	if full {
		r.Flush(context.Background())
	}
}

// Run flushes the buffer on a fixed cadence until the context is
// cancelled, then performs a final flush so shutdown loses nothing.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush writes all buffered ticks to the store. Errors are logged and
// the batch is discarded.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.buf
	r.buf = make([]*domain.Tick, 0, r.batchSize)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	err := r.store.InsertBulk(ctx, batch)
	if err != nil {
		r.logger.Printf("ingestion: flush of %d ticks failed: %v", len(batch), err)
	}
	observability.RecordArchiveFlush(len(batch), err)
}
