package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/domain"
)

func TestSignalCache_Assessment(t *testing.T) {
	ctx := context.Background()
	c := NewSignalCache(NewMemoryCache(), time.Hour)

	_, err := c.LatestAssessment(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrCacheMiss)

	a := domain.Assessment{
		Symbol:         "BTCUSDT",
		BarTime:        time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC),
		Signals:        domain.SignalSnapshot{BuyScore: 0.8, SellScore: 0.1, SignalScore: 0.7},
		Recommendation: domain.RecommendStrongBuy,
		Intent:         domain.IntentOpenLong,
	}
	require.NoError(t, c.SetAssessment(ctx, a))

	got, err := c.LatestAssessment(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, a.BarTime.Equal(got.BarTime))
	assert.Equal(t, a.Signals, got.Signals)
	assert.Equal(t, domain.RecommendStrongBuy, got.Recommendation)

	_, err = c.LatestAssessment(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSignalCache_ReportAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewSignalCache(NewMemoryCache(), 0)

	rep := &analysis.Report{
		AnalysisType: analysis.AnalysisType,
		Symbol:       "BTCUSDT",
		TopFeatures: []analysis.FeatureReport{{
			Rank:            1,
			FeatureName:     "RSI_14",
			PredictionScore: 0.25,
			HighPointAnalysis: map[string]domain.BinStats{
				"0": {SampleCount: 3, UpCount: 1, UpProbability: 0.3333},
			},
			LowPointAnalysis: map[string]domain.BinStats{
				"0": {SampleCount: 3, UpCount: 2, UpProbability: 0.6667},
			},
		}},
	}
	require.NoError(t, c.SetReport(ctx, rep))

	got, err := c.Report(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got.TopFeatures, 1)
	assert.Equal(t, "RSI_14", got.TopFeatures[0].FeatureName)
	assert.Equal(t, 0.6667, got.TopFeatures[0].LowPointAnalysis["0"].UpProbability)

	require.NoError(t, c.Invalidate(ctx, "BTCUSDT"))
	_, err = c.Report(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", 42, time.Minute))

	var v int
	require.NoError(t, m.Get(ctx, "k", &v))
	assert.Equal(t, 42, v)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, m.Get(ctx, "k", &v), ErrCacheMiss)
}
