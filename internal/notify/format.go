package notify

import (
	"fmt"

	"momentum-lab/internal/domain"
)

// FuturesLink returns the Binance futures page for a symbol.
func FuturesLink(symbol string) string {
	return fmt.Sprintf("https://www.binance.com/en/futures/%s", symbol)
}

// FormatSignal renders the notification text for a new momentum signal.
func FormatSignal(s *domain.Signal) string {
	return fmt.Sprintf(
		"SIGNAL: %s | %s\nMove: %.2f%% | Price: %g\nLink: %s",
		s.Symbol, s.Direction, s.MovePct*100, s.Price, FuturesLink(s.Symbol),
	)
}

// FormatTradeOpen renders the notification text for a trade entry.
func FormatTradeOpen(t *domain.Trade) string {
	return fmt.Sprintf(
		"TRADE OPEN: %s | %s\nEntry: %g",
		t.Symbol, t.Direction, *t.EntryPrice,
	)
}

// FormatTradeClose renders the notification text for a trade exit.
func FormatTradeClose(t *domain.Trade) string {
	return fmt.Sprintf(
		"TRADE CLOSED: %s | %s | %s\nPnL 1x: %.2f%% | PnL 5x: %.2f%% | Held: %ds",
		t.Symbol, t.Direction, *t.ExitReason,
		*t.PnL1x*100, *t.PnL5x*100, *t.HoldSeconds,
	)
}
