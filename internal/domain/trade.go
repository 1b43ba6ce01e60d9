package domain

import "time"

// PositionType is the side of a position.
type PositionType string

// Position types. The simulator only opens long positions.
const (
	PositionNone PositionType = "none"
	PositionLong PositionType = "long"
)

// Exit reason codes
const (
	ExitReasonSignal      = "SELL_SIGNAL"
	ExitReasonLiquidation = "FORCED_LIQUIDATION"
)

// Trade is one completed round trip.
type Trade struct {
	TradeID       string       `json:"trade_id"`
	RunID         string       `json:"run_id"`
	Symbol        string       `json:"symbol"`
	EntryTime     time.Time    `json:"entry_time"`
	ExitTime      time.Time    `json:"exit_time"`
	PositionType  PositionType `json:"position_type"`
	EntryPrice    float64      `json:"entry_price"`
	ExitPrice     float64      `json:"exit_price"`
	PnL           float64      `json:"pnl"`           // (exit - entry) / entry
	PnLLeveraged  float64      `json:"pnl_leveraged"` // PnL * leverage
	Leverage      float64      `json:"leverage"`
	DurationHours float64      `json:"duration_hours"`
	ExitReason    string       `json:"exit_reason"`
}

// IsWin reports whether the trade made money.
func (t *Trade) IsWin() bool {
	return t.PnL > 0
}
