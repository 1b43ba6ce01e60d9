package analysis

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, high, low, close float64) domain.Bar {
	return domain.Bar{
		Timestamp: t0.Add(time.Duration(i) * 4 * time.Hour),
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1,
	}
}

func labels(ls ...string) []domain.BinLabel {
	out := make([]domain.BinLabel, len(ls))
	for i, l := range ls {
		out[i] = domain.BinLabel(l)
	}
	return out
}

// fixture with horizon 1:
//
//	i0 -> high +5%,     low 0%    (not down)
//	i1 -> high +1/102,  low -7/102
//	i2 -> high +10%,    low -1%
//	i3 -> high -3/104,  low -6/104
//	i4 -> no outcome
func fixture() *domain.BinnedSeries {
	return &domain.BinnedSeries{
		Symbol: "BTCUSDT",
		Bars: []domain.Bar{
			bar(0, 101, 99, 100),
			bar(1, 105, 100, 102),
			bar(2, 103, 95, 100),
			bar(3, 110, 99, 104),
			bar(4, 101, 98, 100),
		},
		Columns: []domain.BinnedColumn{
			{Name: "F_binned", Source: "F", Labels: labels("0", "1", "0", "1", "0")},
			{Name: "G_binned", Source: "G", Labels: labels("0", "0", "0", "0", "0")},
			{Name: "H_binned", Source: "H", Labels: labels("", "1", "0", "", "1")},
		},
		WindowSize: 12,
	}
}

func newTestAnalyzer(t *testing.T, horizon int) *Analyzer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Horizon = horizon
	a, err := NewAnalyzer(cfg, zerolog.Nop())
	require.NoError(t, err)
	return a
}

func TestForwardOutcomes_Horizon(t *testing.T) {
	bars := make([]domain.Bar, 30)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = bar(i, p+1, p-1, p)
	}

	out := ForwardOutcomes(bars, 12, 0)
	require.Len(t, out, 30)

	require.True(t, out[0].Valid)
	assert.Equal(t, 113.0, out[0].FutureHigh)
	assert.Equal(t, 100.0, out[0].FutureLow)
	assert.InDelta(t, 0.13, out[0].HighPct, 1e-12)
	assert.True(t, out[0].HighUp)
	assert.False(t, out[0].LowDown)

	assert.True(t, out[17].Valid)
	for i := 18; i < 30; i++ {
		assert.False(t, out[i].Valid, "bar %d has fewer than 12 following bars", i)
	}
}

func TestForwardOutcomes_ClippedToWindow(t *testing.T) {
	bars := make([]domain.Bar, 24)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = bar(i, p+1, p-1, p)
	}

	out := ForwardOutcomes(bars, 12, 12)

	require.True(t, out[0].Valid)
	assert.Equal(t, 112.0, out[0].FutureHigh, "horizon stops at bar 11")
	assert.False(t, out[11].Valid, "last bar of a block")
	assert.True(t, out[10].Valid)
	assert.Equal(t, 112.0, out[10].FutureHigh)
	assert.False(t, out[12].Valid, "bar 24 does not exist")
}

func TestAnalyze_BinStatistics(t *testing.T) {
	res, err := newTestAnalyzer(t, 1).Analyze(context.Background(), fixture())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Overview.TotalSamples)
	assert.Equal(t, 4, res.Overview.ValidOutcomes)
	assert.Equal(t, 3, res.Overview.FeatureCount)

	high0 := res.Stats[domain.StatKey{Feature: "F_binned", Bin: "0", Target: domain.TargetHigh}]
	assert.Equal(t, 2, high0.SampleCount)
	assert.InDelta(t, 0.075, high0.MeanPctChange, 1e-12)
	assert.InDelta(t, 0.05/math.Sqrt2, high0.StdPctChange, 1e-12)
	assert.Equal(t, 2, high0.UpCount)
	assert.Equal(t, 1.0, high0.UpProbability)

	high1 := res.Stats[domain.StatKey{Feature: "F_binned", Bin: "1", Target: domain.TargetHigh}]
	assert.Equal(t, 1, high1.UpCount)
	assert.Equal(t, 0.5, high1.UpProbability)

	low0 := res.Stats[domain.StatKey{Feature: "F_binned", Bin: "0", Target: domain.TargetLow}]
	assert.Equal(t, 1, low0.UpCount)
	assert.Equal(t, 0.5, low0.UpProbability)

	low1 := res.Stats[domain.StatKey{Feature: "F_binned", Bin: "1", Target: domain.TargetLow}]
	assert.Equal(t, 1.0, low1.UpProbability)

	// missing labels are not grouped
	h1 := res.Stats[domain.StatKey{Feature: "H_binned", Bin: "1", Target: domain.TargetHigh}]
	assert.Equal(t, 1, h1.SampleCount)
	assert.Equal(t, 0.0, h1.StdPctChange, "single sample has zero std")
	_, ok := res.Stats[domain.StatKey{Feature: "H_binned", Bin: domain.NoBin, Target: domain.TargetHigh}]
	assert.False(t, ok)
}

func TestAnalyze_Ranking(t *testing.T) {
	res, err := newTestAnalyzer(t, 1).Analyze(context.Background(), fixture())
	require.NoError(t, err)
	require.Len(t, res.Rankings, 3)

	assert.Equal(t, "F_binned", res.Rankings[0].Feature)
	assert.Equal(t, 1, res.Rankings[0].Rank)
	assert.InDelta(t, 0.5/math.Sqrt2, res.Rankings[0].PredictionScore, 1e-12)

	// G has a single bin and H has no probability spread: both score zero
	// and tie-break by name.
	assert.Equal(t, "G_binned", res.Rankings[1].Feature)
	assert.Equal(t, 0.0, res.Rankings[1].PredictionScore)
	assert.Equal(t, 2, res.Rankings[1].Rank)
	assert.Equal(t, "H_binned", res.Rankings[2].Feature)
	assert.Equal(t, 0.0, res.Rankings[2].PredictionScore)
	assert.Equal(t, 3, res.Rankings[2].Rank)
}

func TestAnalyze_TopN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 1
	cfg.TopN = 2
	a, err := NewAnalyzer(cfg, zerolog.Nop())
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), fixture())
	require.NoError(t, err)
	assert.Len(t, res.Top(), 2)
	assert.Len(t, res.Report().TopFeatures, 2)
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newTestAnalyzer(t, 2)

	var first []byte
	for run := 0; run < 5; run++ {
		res, err := a.Analyze(context.Background(), fixture())
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, res.Report().WriteJSON(&buf))
		if run == 0 {
			first = buf.Bytes()
			continue
		}
		assert.Equal(t, string(first), buf.String(), "run %d", run)
	}
}

func TestAnalyze_NoZeroSampleEntries(t *testing.T) {
	res, err := newTestAnalyzer(t, 1).Analyze(context.Background(), fixture())
	require.NoError(t, err)
	require.NotEmpty(t, res.Stats)
	for k, s := range res.Stats {
		assert.GreaterOrEqual(t, s.SampleCount, 1, "%+v", k)
	}
}

func TestAnalyze_HorizonLongerThanSeries(t *testing.T) {
	res, err := newTestAnalyzer(t, 12).Analyze(context.Background(), fixture())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Overview.ValidOutcomes)
	assert.Empty(t, res.Stats)
	for _, r := range res.Rankings {
		assert.Equal(t, 0.0, r.PredictionScore)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAnalyzer(t, 1).Analyze(ctx, fixture())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAnalyzer_InvalidConfig(t *testing.T) {
	_, err := NewAnalyzer(Config{Horizon: 0, TopN: 8}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewAnalyzer(Config{Horizon: 12, TopN: 0}, zerolog.Nop())
	assert.Error(t, err)
}
