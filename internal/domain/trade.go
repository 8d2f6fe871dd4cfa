package domain

import "time"

// Exit reason codes for closed trades.
const (
	ExitReasonTP    = "TP"
	ExitReasonSL    = "SL"
	ExitReasonTrail = "TRAIL"
	ExitReasonTime  = "TIME"
)

// Trade lifecycle states, derived from which fields are set.
const (
	TradeStatusPending = "PENDING"
	TradeStatusOpen    = "OPEN"
	TradeStatusClosed  = "CLOSED"
)

// Trade represents the life of a paper trade opened in reaction to a Signal.
// Pending -> Open -> Closed; Closed is terminal.
// Corresponds to the trades table.
type Trade struct {
	ID       string // deterministic hash of the signal id
	SignalID string // originating signal; at most one trade per signal

	Symbol    string
	Direction string // LONG / SHORT

	EntryDelaySeconds int
	PlannedEntryTime  time.Time

	// Set on Pending -> Open.
	EntryTime  *time.Time
	EntryPrice *float64
	TPPrice    *float64 // nil in trailing mode
	SLPrice    *float64 // nil in trailing mode

	// Set on Open -> Closed.
	ExitTime    *time.Time
	ExitPrice   *float64
	ExitReason  *string
	PnL1x       *float64
	PnL5x       *float64
	HoldSeconds *int64
}

// Status derives the lifecycle state from the entry/exit fields, the same
// way the pending/open queries partition the trades table.
func (t *Trade) Status() string {
	switch {
	case t.EntryTime == nil:
		return TradeStatusPending
	case t.ExitTime == nil:
		return TradeStatusOpen
	default:
		return TradeStatusClosed
	}
}

// LeverageMultiplier is the fixed factor applied to the unlevered return
// to produce PnL5x. Not a funding or liquidation model.
const LeverageMultiplier = 5.0

// PnLFraction returns the unlevered return of a position entered at entry
// and marked at price, signed by direction.
func PnLFraction(direction string, entry, price float64) float64 {
	if direction == DirectionShort {
		return (entry - price) / entry
	}
	return (price - entry) / entry
}
