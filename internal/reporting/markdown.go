package reporting

import (
	"fmt"
	"strings"
	"time"

	"candle-bin-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Run.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.Run.RunID))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period Start | %s |\n", formatTime(r.Run.PeriodStart)))
	sb.WriteString(fmt.Sprintf("| Period End | %s |\n", formatTime(r.Run.PeriodEnd)))
	sb.WriteString(fmt.Sprintf("| Buy Threshold | %.2f |\n", r.Run.BuyThreshold))
	sb.WriteString(fmt.Sprintf("| Sell Threshold | %.2f |\n", r.Run.SellThreshold))
	sb.WriteString(fmt.Sprintf("| Leverage | %.2fx |\n", r.Run.Leverage))
	sb.WriteString("\n")

	// Summary
	sb.WriteString("## Summary\n\n")
	if r.Run.TotalTrades == 0 {
		sb.WriteString("No trades were executed.\n\n")
	} else {
		writeSummaryTable(&sb, r.Run.Summary)

		sb.WriteString("### Exit Reasons\n\n")
		sb.WriteString("| Reason | Trades |\n")
		sb.WriteString("|--------|--------|\n")
		for _, c := range r.ExitReasons() {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", c.Reason, c.Count))
		}
		sb.WriteString("\n")
	}

	// Monthly
	sb.WriteString("## Monthly Performance\n\n")
	if len(r.Monthly) > 0 {
		sb.WriteString("| Month | Trades | WinRate | Total | Avg | Sharpe | MaxDD | Equity |\n")
		sb.WriteString("|-------|--------|---------|-------|-----|--------|-------|--------|\n")
		for _, m := range r.Monthly {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% | %.2f%% | %.2f%% | %.2f | %.2f%% | %.4f |\n",
				m.Month, m.TotalTrades, m.WinRate*100, m.TotalReturn*100, m.AvgReturn*100,
				m.SharpeRatio, m.MaxDrawdown*100, m.FinalEquity))
		}
	} else {
		sb.WriteString("No monthly data available.\n")
	}
	sb.WriteString("\n")

	// Features
	sb.WriteString("## Top Features\n\n")
	if len(r.TopFeatures) > 0 {
		sb.WriteString("| Rank | Feature | Score | High Bin | High P(up) | Low Bin | Low P(up) |\n")
		sb.WriteString("|------|---------|-------|----------|------------|---------|-----------|\n")
		for _, f := range r.TopFeatures {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %s | %.4f | %s | %.4f |\n",
				f.Rank, f.FeatureName, f.PredictionScore,
				f.BestHighBin, f.BestHighProb, f.BestLowBin, f.BestLowProb))
		}
	} else {
		sb.WriteString("No feature analysis attached.\n")
	}
	sb.WriteString("\n")

	// Assessment
	if a := r.Assessment; a != nil {
		sb.WriteString("## Latest Assessment\n\n")
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Bar Time | %s |\n", a.UTCTime))
		sb.WriteString(fmt.Sprintf("| Close | %.2f |\n", a.Candle.Close))
		sb.WriteString(fmt.Sprintf("| Buy Score | %.3f |\n", a.Signals.BuyScore))
		sb.WriteString(fmt.Sprintf("| Sell Score | %.3f |\n", a.Signals.SellScore))
		sb.WriteString(fmt.Sprintf("| Recommendation | %s |\n", a.Recommendation))
		sb.WriteString("\n")
	}

	// Ledger
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| # | Entry | Exit | Entry Price | Exit Price | PnL | Lev. PnL | Hours | Reason |\n")
		sb.WriteString("|---|-------|------|-------------|------------|-----|----------|-------|--------|\n")
		for i, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %.4f | %.2f%% | %.2f%% | %.1f | %s |\n",
				i+1, formatTime(t.EntryTime), formatTime(t.ExitTime),
				t.EntryPrice, t.ExitPrice, t.PnL*100, t.PnLLeveraged*100,
				t.DurationHours, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeSummaryTable(sb *strings.Builder, s domain.Summary) {
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Winning Trades | %d |\n", s.WinningTrades))
	sb.WriteString(fmt.Sprintf("| Losing Trades | %d |\n", s.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", s.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Average Return | %.2f%% |\n", s.AvgReturn*100))
	sb.WriteString(fmt.Sprintf("| Best Trade | %.2f%% |\n", s.MaxReturn*100))
	sb.WriteString(fmt.Sprintf("| Worst Trade | %.2f%% |\n", s.MinReturn*100))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.2f |\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", s.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.4f |\n", s.FinalEquity))
	sb.WriteString("\n")
}

// RenderLedger renders a plain-text trade ledger followed by the summary,
// for printing to a terminal.
func RenderLedger(trades []domain.Trade, s domain.Summary) string {
	var sb strings.Builder

	if len(trades) == 0 {
		sb.WriteString("no trades\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-4s %-19s %-19s %12s %12s %9s %9s %s\n",
		"#", "ENTRY", "EXIT", "ENTRY_PX", "EXIT_PX", "PNL%", "LEV_PNL%", "REASON"))
	for i, t := range trades {
		sb.WriteString(fmt.Sprintf("%-4d %-19s %-19s %12.4f %12.4f %9.2f %9.2f %s\n",
			i+1, formatTime(t.EntryTime), formatTime(t.ExitTime),
			t.EntryPrice, t.ExitPrice, t.PnL*100, t.PnLLeveraged*100, t.ExitReason))
	}

	sb.WriteString(fmt.Sprintf("\ntrades=%d wins=%d losses=%d win_rate=%.2f%% total=%.2f%% sharpe=%.2f max_dd=%.2f%% equity=%.4f\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate*100,
		s.TotalReturn*100, s.SharpeRatio, s.MaxDrawdown*100, s.FinalEquity))

	return sb.String()
}
