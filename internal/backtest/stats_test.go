package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
)

func trade(id string, exit time.Time, pnl float64) domain.Trade {
	return domain.Trade{
		TradeID:      id,
		EntryTime:    exit.Add(-time.Hour),
		ExitTime:     exit,
		PnL:          pnl,
		PnLLeveraged: pnl,
		Leverage:     1,
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"all gains", []float64{0.1, 0.05, 0.2}, 0},
		{"single loss", []float64{-0.1}, 0.1},
		{"peak then trough", []float64{0.1, -0.2, 0.05}, 0.2},
		{"recovers above peak", []float64{0.1, -0.5, 2.0, -0.1}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, computeMaxDrawdown(tt.returns), 1e-12)
		})
	}
}

func TestComputeSharpe(t *testing.T) {
	assert.Equal(t, 0.0, computeSharpe(nil))
	assert.Equal(t, 0.0, computeSharpe([]float64{0.5}))
	assert.Equal(t, 0.0, computeSharpe([]float64{0.5, 0.5, 0.5}), "zero deviation")

	got := computeSharpe([]float64{0.1, 0.3})
	want := 0.2 / (0.2 / math.Sqrt2) * math.Sqrt(365)
	assert.InDelta(t, want, got, 1e-9)
}

func TestComputeSummary(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		trade("c", base.Add(48*time.Hour), 0.05),
		trade("a", base, 0.1),
		trade("b", base.Add(24*time.Hour), -0.2),
		trade("d", base.Add(72*time.Hour), 0),
	}

	s := computeSummary(trades)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades, "flat trade is neither")
	assert.Equal(t, 0.5, s.WinRate)
	assert.InDelta(t, -0.05, s.TotalReturn, 1e-12)
	assert.InDelta(t, -0.0125, s.AvgReturn, 1e-12)
	assert.Equal(t, 0.1, s.MaxReturn)
	assert.Equal(t, -0.2, s.MinReturn)
	// ordered by exit: 0.1, -0.2, 0.05, 0
	assert.InDelta(t, 0.2, s.MaxDrawdown, 1e-12)
	assert.InDelta(t, 1.1*0.8*1.05, s.FinalEquity, 1e-12)
}

func TestComputeSummary_UsesLeveragedReturns(t *testing.T) {
	tr := trade("a", time.Now(), 0.1)
	tr.Leverage = 3
	tr.PnLLeveraged = 0.3

	s := computeSummary([]domain.Trade{tr})
	assert.InDelta(t, 0.3, s.TotalReturn, 1e-12)
}

func TestComputeMonthly(t *testing.T) {
	jan := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		trade("x", feb, -0.1),
		trade("y", jan, 0.2),
		trade("z", jan.Add(-24*time.Hour), 0.1),
	}

	months := computeMonthly(trades)

	require.Len(t, months, 2)
	assert.Equal(t, "2024-01", months[0].Month)
	assert.Equal(t, 2, months[0].TotalTrades)
	assert.InDelta(t, 0.3, months[0].TotalReturn, 1e-12)
	assert.Equal(t, "2024-02", months[1].Month)
	assert.Equal(t, 0, months[1].WinningTrades)
	assert.InDelta(t, 0.1, months[1].MaxDrawdown, 1e-12)
}

func TestComputeEquityCurve(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := computeEquityCurve([]domain.Trade{
		trade("a", base, 0.5),
		trade("b", base.Add(time.Hour), -0.5),
	})

	require.Len(t, curve, 2)
	assert.Equal(t, 1.5, curve[0].Equity)
	assert.Equal(t, 1.5, curve[0].Peak)
	assert.Equal(t, 0.0, curve[0].Drawdown)
	assert.Equal(t, 0.75, curve[1].Equity)
	assert.Equal(t, 0.5, curve[1].Drawdown)
}
