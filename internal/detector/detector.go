// Package detector runs the periodic momentum scan: a point-in-time
// lookback comparison per symbol, gated by a per-symbol cooldown.
package detector

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/notify"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
)

// Skip reasons reported to observability.
const (
	skipNoPrice     = "no_price"
	skipNoReference = "no_reference"
	skipBelowMin    = "below_threshold"
)

// scanTimeout bounds the storage calls of one scan pass. A slow store
// costs scans, not correctness: the pass is abandoned and the next tick
// starts fresh.
const scanTimeout = 5 * time.Second

// Detector scans the market state on a fixed cadence and emits a Signal
// for every momentum crossing that passes the cooldown gate.
type Detector struct {
	symbols      []string // fixed iteration order
	lookback     time.Duration
	threshold    float64 // momentum threshold as a fraction, e.g. 0.01
	cooldown     time.Duration
	scanInterval time.Duration

	market   *marketstate.Store
	signals  storage.SignalStore
	notifier notify.Notifier
	logger   *log.Logger

	notifySignals bool

	// lastSignal holds the per-symbol cooldown anchor. Only Scan touches
	// it, and Run never overlaps scans, so no lock is needed.
	lastSignal map[string]time.Time
}

// Options contains configuration for creating a Detector.
type Options struct {
	Symbols      []string
	Lookback     time.Duration
	Threshold    float64
	Cooldown     time.Duration
	ScanInterval time.Duration // defaults to 1s

	Market   *marketstate.Store
	Signals  storage.SignalStore
	Notifier notify.Notifier // defaults to notify.Nop
	Logger   *log.Logger

	NotifySignals bool
}

// New creates a Detector.
func New(opts Options) *Detector {
	scanInterval := opts.ScanInterval
	if scanInterval == 0 {
		scanInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	var notifier notify.Notifier = opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Detector{
		symbols:       opts.Symbols,
		lookback:      opts.Lookback,
		threshold:     opts.Threshold,
		cooldown:      opts.Cooldown,
		scanInterval:  scanInterval,
		market:        opts.Market,
		signals:       opts.Signals,
		notifier:      notifier,
		logger:        logger,
		notifySignals: opts.NotifySignals,
		lastSignal:    make(map[string]time.Time),
	}
}

// Run drives Scan on the configured cadence until the context is
// cancelled. Scans never overlap: the next tick fires only after the
// previous pass returned.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Printf("detector started: %d symbols, lookback=%v, threshold=%.2f%%, cooldown=%v",
		len(d.symbols), d.lookback, d.threshold*100, d.cooldown)

	ticker := time.NewTicker(d.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Println("detector stopping...")
			return ctx.Err()
		case <-ticker.C:
			d.Scan(ctx, time.Now().UTC())
		}
	}
}

// Scan evaluates every configured symbol once at the given instant.
// Symbols are evaluated in fixed order; one symbol's outcome never
// affects another's. A skipped symbol is simply re-evaluated next scan.
func (d *Detector) Scan(ctx context.Context, now time.Time) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	lookbackTime := now.Add(-d.lookback)

	for _, symbol := range d.symbols {
		current, ok := d.market.Latest(symbol)
		if !ok {
			observability.RecordDetectorSkip(skipNoPrice)
			continue
		}

		old, ok := d.market.PriceAtOrBefore(symbol, lookbackTime)
		if !ok || old <= 0 {
			observability.RecordDetectorSkip(skipNoReference)
			continue
		}

		movePct := (current - old) / old
		if math.Abs(movePct) < d.threshold {
			observability.RecordDetectorSkip(skipBelowMin)
			continue
		}

		if !d.cooldownPassed(symbol, now) {
			observability.RecordCooldownReject()
			continue
		}

		d.emit(ctx, symbol, now, current, movePct)
	}

	observability.RecordScanDuration(time.Since(start).Seconds())
}

// cooldownPassed reports whether the symbol's last signal is at least one
// cooldown period old.
func (d *Detector) cooldownPassed(symbol string, now time.Time) bool {
	last, ok := d.lastSignal[symbol]
	if !ok {
		return true
	}
	return now.Sub(last) >= d.cooldown
}

// emit persists a signal and advances the cooldown anchor. The anchor
// moves only after the insert succeeded (or the row already existed), so
// a failed persistence attempt is retried on the next scan.
func (d *Detector) emit(ctx context.Context, symbol string, now time.Time, price, movePct float64) {
	direction := domain.DirectionLong
	if movePct < 0 {
		direction = domain.DirectionShort
	}

	sig := &domain.Signal{
		ID:             idhash.ComputeSignalID(symbol, now, direction),
		Symbol:         symbol,
		Timestamp:      now,
		Direction:      direction,
		Price:          price,
		MovePct:        movePct,
		EMASide:        domain.EMASideUnknown,
		LiquidityTier:  domain.LiquidityTierHigh,
		CooldownPassed: true,
	}

	if err := d.signals.Insert(ctx, sig); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordStorageError("insert_signal")
		d.logger.Printf("detector: insert signal %s %s: %v", symbol, direction, err)
		return
	}

	d.lastSignal[symbol] = now
	observability.RecordSignal(direction)

	d.logger.Printf("SIGNAL %s | %s | move=%.2f%% | price=%g | lookback=%v",
		symbol, direction, movePct*100, price, d.lookback)

	if d.notifySignals {
		d.notifier.Notify(notify.FormatSignal(sig))
		observability.RecordNotification()
	}
}
