package backtest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepConfig_Grid(t *testing.T) {
	grid, err := DefaultSweepConfig().Grid()
	require.NoError(t, err)
	assert.Len(t, grid, 25)
	assert.Equal(t, -3.0, grid[0])
	assert.Equal(t, 0.0, grid[12])
	assert.Equal(t, 3.0, grid[24])

	grid, err = SweepConfig{Min: 0, Max: 1, Step: 0.1}.Grid()
	require.NoError(t, err)
	assert.Len(t, grid, 11)
	assert.Equal(t, 0.3, grid[3])

	_, err = SweepConfig{Min: 0, Max: 1, Step: 0}.Grid()
	assert.Error(t, err)
	_, err = SweepConfig{Min: 1, Max: 0, Step: 0.1}.Grid()
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	bars := risingBars(30)
	// weak signals: only the 0.0/0.25 thresholds fire on them
	bars[2].BuyScore = 0.3
	bars[6].SellScore = 0.3
	// strong signals
	bars[10].BuyScore = 0.9
	bars[25].SellScore = 0.9

	res, err := Sweep(context.Background(), "BTCUSDT", bars,
		SweepConfig{Min: 0, Max: 1, Step: 0.25, Leverage: 1, Workers: 2}, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, res)

	for _, r := range res {
		assert.Positive(t, r.Summary.TotalTrades)
		assert.Less(t, r.BuyThreshold, 1.0, "threshold 1 never fires on scores <= 1")
	}
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Summary.TotalReturn, res[i].Summary.TotalReturn)
	}
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, "BTCUSDT", risingBars(10), DefaultSweepConfig(), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweep_Inclusive(t *testing.T) {
	bars := risingBars(20)
	bars[3].BuyScore = 0.5
	bars[8].SellScore = 0.5
	grid := SweepConfig{Min: 0.5, Max: 0.5, Step: 0.25, Leverage: 1}

	strict, err := Sweep(context.Background(), "BTCUSDT", bars, grid, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, strict, "scores equal to the threshold do not fire")

	grid.Inclusive = true
	inclusive, err := Sweep(context.Background(), "BTCUSDT", bars, grid, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, inclusive, 1)
	assert.Equal(t, 1, inclusive[0].Summary.TotalTrades)
	assert.Equal(t, 0.5, inclusive[0].BuyThreshold)
	assert.True(t, DefaultSweepConfig().Inclusive)
}
