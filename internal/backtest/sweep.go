package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"candle-bin-lab/internal/domain"
)

// SweepConfig is a square grid of buy and sell thresholds.
type SweepConfig struct {
	Min      float64
	Max      float64
	Step     float64
	Leverage float64
	Workers  int
	// Inclusive makes a score equal to a threshold fire, as the grid search
	// of the research scripts did. The single-run simulator stays strict.
	Inclusive bool
}

// DefaultSweepConfig returns the default -3..3 grid with step 0.25.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{Min: -3, Max: 3, Step: 0.25, Leverage: 1, Inclusive: true}
}

// SweepResult is one grid point that produced at least one trade.
type SweepResult struct {
	BuyThreshold  float64
	SellThreshold float64
	Summary       domain.Summary
}

// Grid returns the threshold values min, min+step, ..., max.
func (c SweepConfig) Grid() ([]float64, error) {
	if !(c.Step > 0) {
		return nil, fmt.Errorf("sweep step must be positive, got %v", c.Step)
	}
	if c.Max < c.Min {
		return nil, fmt.Errorf("sweep max %v below min %v", c.Max, c.Min)
	}
	count := int(math.Floor((c.Max-c.Min)/c.Step+1e-9)) + 1
	grid := make([]float64, count)
	for i := range grid {
		grid[i] = math.Round((c.Min+float64(i)*c.Step)*1e9) / 1e9
	}
	return grid, nil
}

// Sweep runs the simulator for every (buy, sell) threshold pair, comparing
// scores with >= when cfg.Inclusive is set and > otherwise. Pairs with no
// trades are dropped. Results are sorted by total return, then Sharpe ratio,
// both descending.
func Sweep(ctx context.Context, symbol string, bars []domain.ScoredBar, cfg SweepConfig, logger zerolog.Logger) ([]SweepResult, error) {
	grid, err := cfg.Grid()
	if err != nil {
		return nil, err
	}

	cells := make([][]*Result, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for bi, buy := range grid {
		g.Go(func() error {
			row := make([]*Result, len(grid))
			for si, sell := range grid {
				if err := gctx.Err(); err != nil {
					return err
				}
				sim, err := NewSimulator(Config{
					BuyThreshold:  buy,
					SellThreshold: sell,
					Leverage:      cfg.Leverage,
					Inclusive:     cfg.Inclusive,
				}, zerolog.Nop())
				if err != nil {
					return err
				}
				row[si] = sim.Run(symbol, bars)
			}
			cells[bi] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	var out []SweepResult
	for bi := range grid {
		for si := range grid {
			r := cells[bi][si]
			if r.NoTrades {
				continue
			}
			out = append(out, SweepResult{
				BuyThreshold:  grid[bi],
				SellThreshold: grid[si],
				Summary:       r.Summary,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Summary.TotalReturn != out[j].Summary.TotalReturn {
			return out[i].Summary.TotalReturn > out[j].Summary.TotalReturn
		}
		return out[i].Summary.SharpeRatio > out[j].Summary.SharpeRatio
	})

	logger.Info().
		Str("symbol", symbol).
		Int("grid_points", len(grid)*len(grid)).
		Int("with_trades", len(out)).
		Msg("threshold sweep complete")

	return out, nil
}
