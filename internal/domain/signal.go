package domain

import "time"

// Direction of a momentum move and of the paper position opened for it.
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Signal represents a detected momentum event for one symbol.
// Immutable once created; corresponds to the signals table.
type Signal struct {
	ID        string    // deterministic hash, see idhash
	Symbol    string    // e.g. BTCUSDT
	Timestamp time.Time // detection time
	Direction string    // LONG / SHORT
	Price     float64   // price at detection
	MovePct   float64   // signed move fraction over the lookback window

	// Auxiliary fields reserved for a richer detector. The momentum
	// detector persists them with neutral defaults.
	Volume1m       float64
	Volume10mAvg   float64
	VolumeRatio    float64
	OI             *float64
	BuyVol         *float64
	SellVol        *float64
	CVDSnapshot    *float64
	EMASide        string // above / below / unknown
	LiquidityTier  string // LOW / HIGH
	CooldownPassed bool
}

// Neutral defaults for the auxiliary signal fields.
const (
	EMASideUnknown    = "unknown"
	LiquidityTierHigh = "HIGH"
)
