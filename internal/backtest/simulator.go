// Package backtest replays per-bar scores through a single-position long-only
// simulator and derives the trade ledger and its statistics.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/idhash"
)

// Config holds simulator parameters.
type Config struct {
	BuyThreshold  float64
	SellThreshold float64
	Leverage      float64
	Monthly       bool
	// Inclusive fires signals when a score equals its threshold.
	Inclusive bool
}

// DefaultConfig returns the default simulator parameters.
func DefaultConfig() Config {
	return Config{
		BuyThreshold:  0.5,
		SellThreshold: 0.5,
		Leverage:      1.0,
		Monthly:       true,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if !(c.Leverage > 0) || math.IsInf(c.Leverage, 0) {
		return fmt.Errorf("leverage must be positive and finite, got %v", c.Leverage)
	}
	if math.IsNaN(c.BuyThreshold) || math.IsNaN(c.SellThreshold) {
		return fmt.Errorf("thresholds must not be NaN")
	}
	return nil
}

// Result is the output of one simulation.
type Result struct {
	RunID    string
	Symbol   string
	Config   Config
	Trades   []domain.Trade
	Summary  domain.Summary
	Monthly  []domain.MonthlySummary
	Equity   []domain.EquityPoint
	NoTrades bool
	// ConfigHash identifies the binning settings and statistics behind the scores.
	ConfigHash string
	// PeriodStart and PeriodEnd are the first and last bar times.
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// RunSummary returns the persisted form of the result.
func (r *Result) RunSummary(createdAt time.Time) domain.RunSummary {
	return domain.RunSummary{
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		CreatedAt:     createdAt,
		PeriodStart:   r.PeriodStart,
		PeriodEnd:     r.PeriodEnd,
		BuyThreshold:  r.Config.BuyThreshold,
		SellThreshold: r.Config.SellThreshold,
		Leverage:      r.Config.Leverage,
		Summary:       r.Summary,
	}
}

// Simulator is the BacktestSimulator.
type Simulator struct {
	cfg    Config
	logger zerolog.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator(cfg Config, logger zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger.With().Str("stage", "backtest").Logger(),
	}, nil
}

// position is the simulator state. Flat when open is false.
type position struct {
	open       bool
	entryPrice float64
	entryTime  time.Time
}

// Run simulates bars in order. Signals on bar i execute at bar i+1's open.
//
//	FLAT -> LONG  when buy_score > buy threshold
//	LONG -> FLAT  when sell_score > sell threshold
//
// With Config.Inclusive the comparisons are >=.
//
// A position still open at the end is closed at the last bar's open.
// A buy signal on the second-to-last bar is ignored since the position
// could only open and close on the same bar.
func (s *Simulator) Run(symbol string, bars []domain.ScoredBar) *Result {
	return s.RunWithConfigHash(symbol, "", bars)
}

// RunWithConfigHash is Run with configHash folded into the run id, so runs
// over the same bars scored under different settings stay distinct.
func (s *Simulator) RunWithConfigHash(symbol, configHash string, bars []domain.ScoredBar) *Result {
	res := &Result{
		Symbol:     symbol,
		Config:     s.cfg,
		ConfigHash: configHash,
	}
	n := len(bars)
	if n > 0 {
		res.PeriodStart = bars[0].Timestamp
		res.PeriodEnd = bars[n-1].Timestamp
	}
	res.RunID = idhash.ComputeRunID(symbol,
		res.PeriodStart.UnixMilli(), res.PeriodEnd.UnixMilli(),
		s.cfg.BuyThreshold, s.cfg.SellThreshold, s.cfg.Leverage, configHash)

	var pos position
	for i := 0; i < n-1; i++ {
		cur, next := bars[i], bars[i+1]

		if !pos.open {
			if s.fires(cur.BuyScore, s.cfg.BuyThreshold) && i < n-2 {
				pos = position{open: true, entryPrice: next.Open, entryTime: next.Timestamp}
			}
			continue
		}

		if s.fires(cur.SellScore, s.cfg.SellThreshold) {
			res.Trades = append(res.Trades, s.close(res, pos, next, domain.ExitReasonSignal))
			pos = position{}
		}
	}

	if pos.open {
		last := bars[n-1]
		res.Trades = append(res.Trades, s.close(res, pos, last, domain.ExitReasonLiquidation))
	}

	res.NoTrades = len(res.Trades) == 0
	res.Summary = computeSummary(res.Trades)
	res.Equity = computeEquityCurve(sortByExit(res.Trades))
	if s.cfg.Monthly {
		res.Monthly = computeMonthly(res.Trades)
	}

	ev := s.logger.Debug()
	if res.NoTrades {
		ev = s.logger.Info()
	}
	ev.Str("symbol", symbol).
		Int("bars", n).
		Int("trades", res.Summary.TotalTrades).
		Float64("total_return", res.Summary.TotalReturn).
		Float64("max_drawdown", res.Summary.MaxDrawdown).
		Bool("no_trades", res.NoTrades).
		Msg("backtest complete")

	return res
}

func (s *Simulator) fires(score, threshold float64) bool {
	if s.cfg.Inclusive {
		return score >= threshold
	}
	return score > threshold
}

func (s *Simulator) close(res *Result, pos position, at domain.ScoredBar, reason string) domain.Trade {
	pnl := (at.Open - pos.entryPrice) / pos.entryPrice
	return domain.Trade{
		TradeID:       idhash.ComputeTradeID(res.RunID, res.Symbol, pos.entryTime.UnixMilli(), at.Timestamp.UnixMilli()),
		RunID:         res.RunID,
		Symbol:        res.Symbol,
		EntryTime:     pos.entryTime,
		ExitTime:      at.Timestamp,
		PositionType:  domain.PositionLong,
		EntryPrice:    pos.entryPrice,
		ExitPrice:     at.Open,
		PnL:           pnl,
		PnLLeveraged:  pnl * s.cfg.Leverage,
		Leverage:      s.cfg.Leverage,
		DurationHours: at.Timestamp.Sub(pos.entryTime).Hours(),
		ExitReason:    reason,
	}
}
