package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the summary as a Markdown string.
func RenderMarkdown(s *Summary) string {
	var sb strings.Builder

	sb.WriteString("# Trading Summary\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Pending | %d |\n", s.PendingTrades))
	sb.WriteString(fmt.Sprintf("| Open | %d |\n", s.OpenTrades))
	sb.WriteString(fmt.Sprintf("| Closed | %d |\n", s.ClosedTrades))
	sb.WriteString("\n")

	if s.ClosedTrades == 0 {
		sb.WriteString("No closed trades yet.\n")
		return sb.String()
	}

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", s.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", s.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate*100))
	sb.WriteString(fmt.Sprintf("| PnL Mean (1x) | %.4f |\n", s.PnLMean))
	sb.WriteString(fmt.Sprintf("| PnL Median (1x) | %.4f |\n", s.PnLMedian))
	sb.WriteString(fmt.Sprintf("| PnL P10 (1x) | %.4f |\n", s.PnLP10))
	sb.WriteString(fmt.Sprintf("| PnL P90 (1x) | %.4f |\n", s.PnLP90))
	sb.WriteString(fmt.Sprintf("| PnL Stddev (1x) | %.4f |\n", s.PnLStddev))
	sb.WriteString(fmt.Sprintf("| PnL Total (1x) | %.4f |\n", s.PnLTotal1x))
	sb.WriteString(fmt.Sprintf("| PnL Total (5x) | %.4f |\n", s.PnLTotal5x))
	sb.WriteString(fmt.Sprintf("| Mean Hold (s) | %.1f |\n", s.MeanHoldSeconds))
	sb.WriteString("\n")

	if len(s.ByReason) > 0 {
		sb.WriteString("## By Exit Reason\n\n")
		sb.WriteString("| Reason | Count | Win Rate | PnL Mean (1x) |\n")
		sb.WriteString("|--------|-------|----------|---------------|\n")
		for _, row := range s.ByReason {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% | %.4f |\n",
				row.Reason, row.Count, row.WinRate*100, row.PnLMean))
		}
		sb.WriteString("\n")
	}

	if len(s.BySymbol) > 0 {
		sb.WriteString("## By Symbol\n\n")
		sb.WriteString("| Symbol | Count | Win Rate | PnL Total (1x) |\n")
		sb.WriteString("|--------|-------|----------|----------------|\n")
		for _, row := range s.BySymbol {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% | %.4f |\n",
				row.Symbol, row.Count, row.WinRate*100, row.PnLTotal))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
