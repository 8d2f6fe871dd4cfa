package reporting

import (
	"context"
	"math"
	"sort"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Generator produces summaries from stored trades.
type Generator struct {
	trades storage.TradeStore
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new summary generator.
func NewGenerator(trades storage.TradeStore) *Generator {
	return &Generator{
		trades: trades,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate computes the summary over the current trades table.
func (g *Generator) Generate(ctx context.Context) (*Summary, error) {
	pending, err := g.trades.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	open, err := g.trades.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	closed, err := g.trades.ListClosed(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		GeneratedAt:   g.now(),
		PendingTrades: len(pending),
		OpenTrades:    len(open),
		ClosedTrades:  len(closed),
	}
	if len(closed) == 0 {
		return s, nil
	}

	pnls := make([]float64, 0, len(closed))
	var holdSum float64
	for _, t := range closed {
		pnl := pnlOf(t)
		pnls = append(pnls, pnl)
		if pnl > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.PnLTotal1x += pnl
		if t.PnL5x != nil {
			s.PnLTotal5x += *t.PnL5x
		}
		if t.HoldSeconds != nil {
			holdSum += float64(*t.HoldSeconds)
		}
	}

	s.WinRate = float64(s.Wins) / float64(len(closed))
	s.MeanHoldSeconds = holdSum / float64(len(closed))

	sorted := make([]float64, len(pnls))
	copy(sorted, pnls)
	sort.Float64s(sorted)

	s.PnLMean = computeMean(pnls)
	s.PnLMedian = computePercentile(sorted, 0.50)
	s.PnLP10 = computePercentile(sorted, 0.10)
	s.PnLP90 = computePercentile(sorted, 0.90)
	s.PnLStddev = computeStddev(pnls, s.PnLMean)

	s.ByReason = groupByReason(closed)
	s.BySymbol = groupBySymbol(closed)

	return s, nil
}

func pnlOf(t *domain.Trade) float64 {
	if t.PnL1x == nil {
		return 0
	}
	return *t.PnL1x
}

func groupByReason(closed []*domain.Trade) []ReasonRow {
	groups := make(map[string][]*domain.Trade)
	for _, t := range closed {
		reason := ""
		if t.ExitReason != nil {
			reason = *t.ExitReason
		}
		groups[reason] = append(groups[reason], t)
	}

	rows := make([]ReasonRow, 0, len(groups))
	for reason, trades := range groups {
		wins := 0
		var sum float64
		for _, t := range trades {
			pnl := pnlOf(t)
			if pnl > 0 {
				wins++
			}
			sum += pnl
		}
		rows = append(rows, ReasonRow{
			Reason:  reason,
			Count:   len(trades),
			WinRate: float64(wins) / float64(len(trades)),
			PnLMean: sum / float64(len(trades)),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Reason < rows[j].Reason })
	return rows
}

func groupBySymbol(closed []*domain.Trade) []SymbolRow {
	groups := make(map[string][]*domain.Trade)
	for _, t := range closed {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}

	rows := make([]SymbolRow, 0, len(groups))
	for symbol, trades := range groups {
		wins := 0
		var sum float64
		for _, t := range trades {
			pnl := pnlOf(t)
			if pnl > 0 {
				wins++
			}
			sum += pnl
		}
		rows = append(rows, SymbolRow{
			Symbol:   symbol,
			Count:    len(trades),
			WinRate:  float64(wins) / float64(len(trades)),
			PnLTotal: sum,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be pre-sorted
// ASC; p is the percentile as a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
