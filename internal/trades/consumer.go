// Package trades converts persisted signals into paper trades and manages
// their lifecycle: Pending -> Open -> Closed.
package trades

import (
	"context"
	"errors"
	"log"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
)

// defaultPollLimit bounds how many signals one poll inspects.
const defaultPollLimit = 200

// pollTimeout bounds the storage calls of one poll pass. An unconverted
// signal is simply retried on the next poll.
const pollTimeout = 5 * time.Second

// Consumer polls for newly persisted signals and creates exactly one
// pending trade per signal. Only signals created after startup are
// consumed; there is no backfill.
type Consumer struct {
	signals storage.SignalStore
	trades  storage.TradeStore
	market  *marketstate.Store

	entryDelay   time.Duration
	pollInterval time.Duration
	pollLimit    int
	startupTime  time.Time
	logger       *log.Logger

	// seen caches signal ids already converted (or found converted) this
	// process lifetime. Private to Poll; Run never overlaps polls.
	seen map[string]struct{}
}

// ConsumerOptions contains configuration for creating a Consumer.
type ConsumerOptions struct {
	Signals storage.SignalStore
	Trades  storage.TradeStore
	Market  *marketstate.Store

	EntryDelay   time.Duration
	PollInterval time.Duration // defaults to 1s
	PollLimit    int           // defaults to 200
	StartupTime  time.Time     // defaults to now
	Logger       *log.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	pollLimit := opts.PollLimit
	if pollLimit == 0 {
		pollLimit = defaultPollLimit
	}
	startupTime := opts.StartupTime
	if startupTime.IsZero() {
		startupTime = time.Now().UTC()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Consumer{
		signals:      opts.Signals,
		trades:       opts.Trades,
		market:       opts.Market,
		entryDelay:   opts.EntryDelay,
		pollInterval: pollInterval,
		pollLimit:    pollLimit,
		startupTime:  startupTime,
		logger:       logger,
		seen:         make(map[string]struct{}),
	}
}

// Run drives Poll on the configured cadence until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Printf("signal consumer started (signals -> trades), entry delay %v", c.entryDelay)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Println("signal consumer stopping...")
			return ctx.Err()
		case <-ticker.C:
			c.Poll(ctx, time.Now().UTC())
		}
	}
}

// Poll converts each unconverted signal since startup into one pending
// trade. Idempotent: the seen cache, the ExistsForSignal pre-check, and
// the deterministic trade id each independently prevent duplicates.
func (c *Consumer) Poll(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	sigs, err := c.signals.ListSince(ctx, c.startupTime, c.pollLimit)
	if err != nil {
		observability.RecordStorageError("list_signals")
		c.logger.Printf("consumer: list signals: %v", err)
		return
	}

	for _, sig := range sigs {
		if _, done := c.seen[sig.ID]; done {
			continue
		}

		exists, err := c.trades.ExistsForSignal(ctx, sig.ID)
		if err != nil {
			observability.RecordStorageError("trade_exists")
			c.logger.Printf("consumer: check trade for signal %s: %v", sig.ID, err)
			continue
		}
		if exists {
			c.seen[sig.ID] = struct{}{}
			continue
		}

		// A trade needs a live price to be worth opening later; without
		// one the signal is retried next poll.
		if _, ok := c.market.Latest(sig.Symbol); !ok {
			continue
		}

		trade := &domain.Trade{
			ID:                idhash.ComputeTradeID(sig.ID),
			SignalID:          sig.ID,
			Symbol:            sig.Symbol,
			Direction:         sig.Direction,
			EntryDelaySeconds: int(c.entryDelay.Seconds()),
			PlannedEntryTime:  now.Add(c.entryDelay),
		}

		if err := c.trades.CreatePending(ctx, trade); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				c.seen[sig.ID] = struct{}{}
				continue
			}
			observability.RecordStorageError("create_pending")
			c.logger.Printf("consumer: create trade for signal %s: %v", sig.ID, err)
			continue
		}

		c.seen[sig.ID] = struct{}{}
		observability.RecordTradeCreated()
		c.logger.Printf("TRADE CREATED | trade=%s | signal=%s | %s | %s | entry_in=%v",
			shortID(trade.ID), shortID(sig.ID), sig.Symbol, sig.Direction, c.entryDelay)
	}
}

// shortID abbreviates a 64-char hash id for log lines.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
