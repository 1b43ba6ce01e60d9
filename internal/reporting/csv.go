package reporting

import (
	"fmt"
	"strings"
	"time"

	"candle-bin-lab/internal/backtest"
	"candle-bin-lab/internal/domain"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// RenderTradesCSV renders a trade ledger as CSV string.
func RenderTradesCSV(trades []domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,entry_time,exit_time,position_type,entry_price,exit_price,")
	sb.WriteString("pnl,pnl_leveraged,leverage,duration_hours,exit_reason\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%.2f,%.2f,%s\n",
			t.TradeID,
			t.EntryTime.UTC().Format(csvTimeLayout),
			t.ExitTime.UTC().Format(csvTimeLayout),
			t.PositionType,
			t.EntryPrice,
			t.ExitPrice,
			t.PnL,
			t.PnLLeveraged,
			t.Leverage,
			t.DurationHours,
			t.ExitReason,
		))
	}

	return sb.String()
}

// RenderScoresCSV renders scored bars as CSV string.
func RenderScoresCSV(bars []domain.ScoredBar) string {
	var sb strings.Builder

	sb.WriteString("timestamp,open,high,low,close,buy_score,sell_score,signal_score\n")
	for _, b := range bars {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			b.Timestamp.UTC().Format(csvTimeLayout),
			b.Open, b.High, b.Low, b.Close,
			b.BuyScore, b.SellScore, b.SignalScore,
		))
	}

	return sb.String()
}

// RenderBinnedCSV renders the binned table: timestamp, OHLCV, then one column
// per binned feature. Missing bins are empty cells.
func RenderBinnedCSV(b *domain.BinnedSeries) string {
	var sb strings.Builder

	sb.WriteString("timestamp,open,high,low,close,volume")
	for _, col := range b.Columns {
		sb.WriteString("," + col.Name)
	}
	sb.WriteString("\n")

	for i, bar := range b.Bars {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%.6f",
			bar.Timestamp.UTC().Format(csvTimeLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		))
		for _, col := range b.Columns {
			sb.WriteString("," + col.Labels[i].String())
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderMonthlyCSV renders monthly statistics as CSV string.
func RenderMonthlyCSV(monthly []domain.MonthlySummary) string {
	var sb strings.Builder

	sb.WriteString("month,total_trades,winning_trades,losing_trades,win_rate,")
	sb.WriteString("total_return,avg_return,max_return,min_return,sharpe_ratio,max_drawdown,final_equity\n")
	for _, m := range monthly {
		sb.WriteString(fmt.Sprintf("%s,%s\n", m.Month, summaryFields(m.Summary)))
	}

	return sb.String()
}

// RenderSweepCSV renders threshold sweep results as CSV string, in the given order.
func RenderSweepCSV(results []backtest.SweepResult) string {
	var sb strings.Builder

	sb.WriteString("buy_threshold,sell_threshold,total_trades,winning_trades,losing_trades,win_rate,")
	sb.WriteString("total_return,avg_return,max_return,min_return,sharpe_ratio,max_drawdown,final_equity\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("%.2f,%.2f,%s\n", r.BuyThreshold, r.SellThreshold, summaryFields(r.Summary)))
	}

	return sb.String()
}

func summaryFields(s domain.Summary) string {
	return fmt.Sprintf("%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f",
		s.TotalTrades,
		s.WinningTrades,
		s.LosingTrades,
		s.WinRate,
		s.TotalReturn,
		s.AvgReturn,
		s.MaxReturn,
		s.MinReturn,
		s.SharpeRatio,
		s.MaxDrawdown,
		s.FinalEquity,
	)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(csvTimeLayout)
}
