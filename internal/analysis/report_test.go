package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
)

func TestReport_Shape(t *testing.T) {
	res, err := newTestAnalyzer(t, 1).Analyze(context.Background(), fixture())
	require.NoError(t, err)

	rep := res.Report()
	assert.Equal(t, AnalysisType, rep.AnalysisType)
	assert.Equal(t, 5, rep.DataOverview.TotalSamples)
	assert.Equal(t, 3, rep.DataOverview.BinnedFeaturesCount)
	assert.Equal(t, "2024-03-01 00:00:00", rep.DataOverview.AnalysisPeriod.Start)
	assert.Equal(t, "2024-03-01 16:00:00", rep.DataOverview.AnalysisPeriod.End)

	top := rep.TopFeatures[0]
	assert.Equal(t, "F_binned", top.FeatureName)
	assert.Equal(t, 0.3536, top.PredictionScore, "rounded to 4 decimals")
	assert.Equal(t, 0.0354, top.HighPointAnalysis["0"].StdPctChange)
	assert.Contains(t, top.LowPointAnalysis, "1")

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"analysis_type", "data_overview", "top_features"} {
		assert.Contains(t, raw, key)
	}
	assert.Contains(t, buf.String(), `"up_probability"`)
	assert.Contains(t, buf.String(), `"high_point_analysis"`)
}

func TestReport_LoadIntoTable(t *testing.T) {
	res, err := newTestAnalyzer(t, 1).Analyze(context.Background(), fixture())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Report().WriteJSON(&buf))

	rep, err := LoadReport(&buf)
	require.NoError(t, err)

	table := NewTable(rep)
	assert.Empty(t, table.Skipped)
	require.NotEmpty(t, table.Features())
	assert.Equal(t, "F_binned", table.Features()[0].Feature)

	s, ok := table.Lookup("F_binned", "1", domain.TargetLow)
	require.True(t, ok)
	assert.Equal(t, 1.0, s.UpProbability)

	_, ok = table.Lookup("F_binned", "7", domain.TargetLow)
	assert.False(t, ok)
}

func TestLoadReport_Invalid(t *testing.T) {
	_, err := LoadReport(strings.NewReader("{not json"))
	assert.ErrorIs(t, err, ErrMalformedReport)

	_, err = LoadReport(strings.NewReader(`{"analysis_type": "x"}`))
	assert.ErrorIs(t, err, ErrMalformedReport)
}

func TestNewTable_SkipsMalformedFeatures(t *testing.T) {
	good := map[string]domain.BinStats{
		"0": {SampleCount: 4, UpCount: 3, UpProbability: 0.75},
		"1": {SampleCount: 2, UpCount: 0, UpProbability: 0},
	}
	rep := &Report{TopFeatures: []FeatureReport{
		{Rank: 1, FeatureName: "A_binned", PredictionScore: 0.3, HighPointAnalysis: good, LowPointAnalysis: good},
		{Rank: 2, FeatureName: "B_binned", PredictionScore: 0.2, HighPointAnalysis: good},
		{Rank: 3, FeatureName: "C_binned", PredictionScore: 0.1, HighPointAnalysis: good, LowPointAnalysis: map[string]domain.BinStats{
			"0": {SampleCount: 0},
		}},
		{Rank: 4, FeatureName: "D_binned", PredictionScore: 0.1, HighPointAnalysis: good, LowPointAnalysis: map[string]domain.BinStats{
			"0": {SampleCount: 1, UpCount: 2, UpProbability: 1},
		}},
		{Rank: 5, FeatureName: "", PredictionScore: 0.1, HighPointAnalysis: good, LowPointAnalysis: good},
	}}

	table := NewTable(rep)

	require.Len(t, table.Features(), 1)
	assert.Equal(t, "A_binned", table.Features()[0].Feature)
	require.Len(t, table.Skipped, 4)
	for _, s := range table.Skipped {
		assert.ErrorIs(t, s.Err, ErrMalformedReport)
	}
	assert.Equal(t, "B_binned", table.Skipped[0].Feature)
	assert.Equal(t, 4, table.Len())
}
