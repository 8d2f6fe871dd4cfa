package trades

import (
	"context"
	"log"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/notify"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
)

// ExitPolicy selects how open trades are managed.
type ExitPolicy string

const (
	// ExitPolicyFixed uses static TP/SL offsets from the entry price plus
	// a time stop.
	ExitPolicyFixed ExitPolicy = "fixed"
	// ExitPolicyTrailing uses an armed trailing stop with a time stop that
	// profitable trades bypass, capped by an absolute max hold.
	ExitPolicyTrailing ExitPolicy = "trailing"
)

// EngineConfig holds the exit-policy parameters of the lifecycle engine.
// Percentages are fractions (0.02 = 2%).
type EngineConfig struct {
	Policy ExitPolicy

	// Fixed policy.
	TakeProfitPct float64
	StopLossPct   float64

	// Trailing policy.
	TrailingActivationPct float64
	TrailingDistancePct   float64
	TimeStopBypassPct     float64 // suppress the time stop at/above this PnL
	MaxHoldSeconds        int64   // absolute cap, never bypassed

	// Both policies.
	TimeStopSeconds int64

	TickInterval time.Duration // defaults to 1s
	NotifyTrades bool
}

// trailState is the ephemeral trailing memory of one open trade. It lives
// only in this engine; a restart loses it and the trade re-derives its
// trail from scratch, unarmed, peak reset to entry.
type trailState struct {
	armed bool
	peak  float64
}

// Engine advances trades through Pending -> Open -> Closed on a fixed
// cadence, reading prices from the market state store.
type Engine struct {
	cfg      EngineConfig
	market   *marketstate.Store
	trades   storage.TradeStore
	notifier notify.Notifier
	logger   *log.Logger

	// trail is keyed by trade id. Only Tick touches it, and Run never
	// overlaps ticks, so no lock is needed.
	trail map[string]*trailState
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Config   EngineConfig
	Market   *marketstate.Store
	Trades   storage.TradeStore
	Notifier notify.Notifier // defaults to notify.Nop
	Logger   *log.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	var notifier notify.Notifier = opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Engine{
		cfg:      cfg,
		market:   opts.Market,
		trades:   opts.Trades,
		notifier: notifier,
		logger:   logger,
		trail:    make(map[string]*trailState),
	}
}

// Run drives Tick on the configured cadence until the context is
// cancelled. Ticks never overlap.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("trade engine started (%s mode)", e.cfg.Policy)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Println("trade engine stopping...")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx, time.Now().UTC())
		}
	}
}

// tickTimeout bounds the storage calls of one engine pass. A trade the
// pass could not advance is re-evaluated on the next tick.
const tickTimeout = 5 * time.Second

// Tick runs one full pass: enter due pending trades, then manage open
// trades. A trade whose symbol has no known price is skipped this pass
// and re-evaluated on the next one.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	e.enterPending(ctx, now)
	e.manageOpen(ctx, now)
	observability.RecordEngineTick(time.Since(start).Seconds())
}

// enterPending advances each due pending trade to Open. Entry requires a
// known latest price; without one the trade stays pending indefinitely.
func (e *Engine) enterPending(ctx context.Context, now time.Time) {
	pending, err := e.trades.ListPending(ctx)
	if err != nil {
		observability.RecordStorageError("list_pending")
		e.logger.Printf("engine: list pending: %v", err)
		return
	}

	for _, t := range pending {
		if now.Before(t.PlannedEntryTime) {
			continue
		}

		entryPrice, ok := e.market.Latest(t.Symbol)
		if !ok {
			continue
		}

		var tp, sl *float64
		if e.cfg.Policy == ExitPolicyFixed {
			tpv, slv := fixedExitPrices(t.Direction, entryPrice, e.cfg.TakeProfitPct, e.cfg.StopLossPct)
			tp, sl = &tpv, &slv
		}

		if err := e.trades.MarkOpen(ctx, t.ID, now, entryPrice, tp, sl); err != nil {
			observability.RecordStorageError("mark_open")
			e.logger.Printf("engine: open trade %s: %v", shortID(t.ID), err)
			continue
		}

		if e.cfg.Policy == ExitPolicyTrailing {
			e.trail[t.ID] = &trailState{armed: false, peak: entryPrice}
		}

		observability.RecordTradeOpened()
		e.logger.Printf("TRADE OPEN | id=%s | %s | %s | entry=%.6f",
			shortID(t.ID), t.Symbol, t.Direction, entryPrice)

		if e.cfg.NotifyTrades {
			opened := *t
			opened.EntryTime = &now
			opened.EntryPrice = &entryPrice
			e.notifier.Notify(notify.FormatTradeOpen(&opened))
			observability.RecordNotification()
		}
	}
}

// manageOpen evaluates exit conditions for every open trade.
func (e *Engine) manageOpen(ctx context.Context, now time.Time) {
	open, err := e.trades.ListOpen(ctx)
	if err != nil {
		observability.RecordStorageError("list_open")
		e.logger.Printf("engine: list open: %v", err)
		return
	}

	for _, t := range open {
		price, ok := e.market.Latest(t.Symbol)
		if !ok {
			continue
		}

		holdSeconds := int64(now.Sub(*t.EntryTime).Seconds())

		var reason string
		switch e.cfg.Policy {
		case ExitPolicyFixed:
			reason = e.evaluateFixed(t, price, holdSeconds)
		case ExitPolicyTrailing:
			reason = e.evaluateTrailing(t, price, holdSeconds)
		}

		if reason == "" {
			continue
		}
		e.close(ctx, t, now, price, reason, holdSeconds)
	}
}

// evaluateFixed applies the fixed-policy precedence: TP touch, SL touch,
// time stop. First match wins.
func (e *Engine) evaluateFixed(t *domain.Trade, price float64, holdSeconds int64) string {
	long := t.Direction == domain.DirectionLong

	tp, sl := t.TPPrice, t.SLPrice
	if tp == nil || sl == nil {
		// Open trade carried over from a trailing-policy run has no stored
		// levels. Derive them from the entry price and the configured
		// offsets so the trade keeps being managed.
		tpv, slv := fixedExitPrices(t.Direction, *t.EntryPrice, e.cfg.TakeProfitPct, e.cfg.StopLossPct)
		tp, sl = &tpv, &slv
	}

	switch {
	case long && price >= *tp, !long && price <= *tp:
		return domain.ExitReasonTP
	case long && price <= *sl, !long && price >= *sl:
		return domain.ExitReasonSL
	case holdSeconds >= e.cfg.TimeStopSeconds:
		return domain.ExitReasonTime
	}
	return ""
}

// evaluateTrailing applies the trailing-policy precedence: update peak,
// arm on activation, trail crossing, time stop with profit bypass, then
// the unconditional max-hold cap.
func (e *Engine) evaluateTrailing(t *domain.Trade, price float64, holdSeconds int64) string {
	trail, ok := e.trail[t.ID]
	if !ok {
		// Open trade recovered after a restart: trailing memory is gone,
		// restart it unarmed with peak reset to entry.
		trail = &trailState{armed: false, peak: *t.EntryPrice}
		e.trail[t.ID] = trail
	}

	long := t.Direction == domain.DirectionLong

	// Peak tracks the best price seen, regardless of arming.
	if long && price > trail.peak || !long && price < trail.peak {
		trail.peak = price
	}

	pnl := domain.PnLFraction(t.Direction, *t.EntryPrice, price)

	if !trail.armed && pnl >= e.cfg.TrailingActivationPct {
		trail.armed = true
		e.logger.Printf("TRAIL ARMED | id=%s | pnl=%.2f%%", shortID(t.ID), pnl*100)
	}

	if trail.armed {
		if long {
			if price <= trail.peak*(1-e.cfg.TrailingDistancePct) {
				return domain.ExitReasonTrail
			}
		} else {
			if price >= trail.peak*(1+e.cfg.TrailingDistancePct) {
				return domain.ExitReasonTrail
			}
		}
	}

	switch {
	case holdSeconds >= e.cfg.MaxHoldSeconds:
		// Absolute cap, never bypassed.
		return domain.ExitReasonTime
	case holdSeconds >= e.cfg.TimeStopSeconds && pnl < e.cfg.TimeStopBypassPct:
		// Losing and flat trades are time-boxed; profitable ones are left
		// to the trailing logic.
		return domain.ExitReasonTime
	}
	return ""
}

// close persists the exit, discards trailing memory, and reports it.
func (e *Engine) close(ctx context.Context, t *domain.Trade, now time.Time, price float64, reason string, holdSeconds int64) {
	pnl1x := domain.PnLFraction(t.Direction, *t.EntryPrice, price)
	pnl5x := pnl1x * domain.LeverageMultiplier

	err := e.trades.MarkClosed(ctx, t.ID, storage.TradeClose{
		ExitTime:    now,
		ExitPrice:   price,
		ExitReason:  reason,
		PnL1x:       pnl1x,
		PnL5x:       pnl5x,
		HoldSeconds: holdSeconds,
	})
	if err != nil {
		observability.RecordStorageError("mark_closed")
		e.logger.Printf("engine: close trade %s: %v", shortID(t.ID), err)
		return
	}

	delete(e.trail, t.ID)
	observability.RecordTradeClosed(reason)
	e.logger.Printf("TRADE CLOSED | id=%s | reason=%s | pnl_1x=%.2f%% | hold=%ds",
		shortID(t.ID), reason, pnl1x*100, holdSeconds)

	if e.cfg.NotifyTrades {
		closed := *t
		closed.ExitTime = &now
		closed.ExitPrice = &price
		closed.ExitReason = &reason
		closed.PnL1x = &pnl1x
		closed.PnL5x = &pnl5x
		closed.HoldSeconds = &holdSeconds
		e.notifier.Notify(notify.FormatTradeClose(&closed))
		observability.RecordNotification()
	}
}

// fixedExitPrices computes direction-aware TP/SL prices from the entry.
func fixedExitPrices(direction string, entry, tpPct, slPct float64) (tp, sl float64) {
	if direction == domain.DirectionShort {
		return entry * (1 - tpPct), entry * (1 + slPct)
	}
	return entry * (1 + tpPct), entry * (1 - slPct)
}
