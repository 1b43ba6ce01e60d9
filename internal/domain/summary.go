package domain

import "time"

// Summary holds the statistic set of a trade ledger (or one month of it).
// All ratios are 0 when undefined (no trades, zero deviation).
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalReturn   float64 `json:"total_return"` // sum of leveraged pnl
	AvgReturn     float64 `json:"avg_return"`
	MaxReturn     float64 `json:"max_return"`
	MinReturn     float64 `json:"min_return"`
	SharpeRatio   float64 `json:"sharpe_ratio"` // mean/std * sqrt(365), trade-based, not annualised
	MaxDrawdown   float64 `json:"max_drawdown"` // fraction of running equity peak, >= 0
	FinalEquity   float64 `json:"final_equity"` // compounded equity starting at 1.0
}

// MonthlySummary is the Summary of trades that exited in one calendar month.
type MonthlySummary struct {
	Month string `json:"month"` // "2006-01"
	Summary
}

// EquityPoint is one step of the compounded equity curve.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Peak     float64   `json:"peak"`
	Drawdown float64   `json:"drawdown"`
}

// RunSummary is a persisted backtest run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Symbol        string    `json:"symbol"`
	CreatedAt     time.Time `json:"created_at"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	BuyThreshold  float64   `json:"buy_threshold"`
	SellThreshold float64   `json:"sell_threshold"`
	Leverage      float64   `json:"leverage"`
	Summary
}
