package reporting

import (
	"fmt"
	"strings"
	"time"

	"momentum-lab/internal/domain"
)

// RenderTradesCSV renders closed trades as a CSV string, one row per
// trade in the given order.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,signal_id,symbol,direction,entry_time,entry_price,")
	sb.WriteString("exit_time,exit_price,exit_reason,pnl_1x,pnl_5x,hold_seconds\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			t.ID,
			t.SignalID,
			t.Symbol,
			t.Direction,
			fmtTime(t.EntryTime),
			fmtFloat(t.EntryPrice),
			fmtTime(t.ExitTime),
			fmtFloat(t.ExitPrice),
			fmtString(t.ExitReason),
			fmtFloat(t.PnL1x),
			fmtFloat(t.PnL5x),
			fmtInt(t.HoldSeconds),
		))
	}

	return sb.String()
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fmtFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *f)
}

func fmtString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtInt(i *int64) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%d", *i)
}
