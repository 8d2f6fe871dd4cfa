// Package reporting aggregates closed trades into a performance summary
// and renders it as Markdown or CSV.
package reporting

import "time"

// Summary is the aggregate view over all recorded trades. A trade counts
// as a win when its unlevered return is positive.
type Summary struct {
	GeneratedAt time.Time

	// Lifecycle counts at generation time.
	PendingTrades int
	OpenTrades    int
	ClosedTrades  int

	Wins    int
	Losses  int
	WinRate float64

	// Distribution of pnl_1x over closed trades.
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP90    float64
	PnLStddev float64

	// Cumulative sums over closed trades.
	PnLTotal1x float64
	PnLTotal5x float64

	MeanHoldSeconds float64

	ByReason []ReasonRow
	BySymbol []SymbolRow
}

// ReasonRow breaks closed trades down by exit reason.
type ReasonRow struct {
	Reason  string
	Count   int
	WinRate float64
	PnLMean float64
}

// SymbolRow breaks closed trades down by symbol.
type SymbolRow struct {
	Symbol   string
	Count    int
	WinRate  float64
	PnLTotal float64
}
