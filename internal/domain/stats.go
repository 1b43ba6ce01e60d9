package domain

import "time"

// Target selects which forward extreme a statistic describes.
type Target string

// Targets.
const (
	TargetHigh Target = "high"
	TargetLow  Target = "low"
)

// Targets lists both targets in report order.
var Targets = []Target{TargetHigh, TargetLow}

// Outcome is the forward extreme of one bar over the horizon.
// Valid is false when fewer than horizon bars follow.
type Outcome struct {
	Valid      bool
	FutureHigh float64
	FutureLow  float64
	HighPct    float64 // (FutureHigh - close) / close
	LowPct     float64 // (FutureLow - close) / close
	HighUp     bool    // HighPct > 0
	LowDown    bool    // LowPct < 0
}

// StatKey addresses one BinStats entry.
type StatKey struct {
	Feature string
	Bin     BinLabel
	Target  Target
}

// BinStats describes the forward outcomes of all bars that shared a bin.
// UpCount and UpProbability count the directional label of the target
// (price above close for high, below close for low).
type BinStats struct {
	SampleCount   int     `json:"sample_count" validate:"gte=1"`
	MeanPctChange float64 `json:"avg_change_pct"`
	StdPctChange  float64 `json:"change_std" validate:"gte=0"`
	UpCount       int     `json:"up_count" validate:"gte=0,ltefield=SampleCount"`
	UpProbability float64 `json:"up_probability" validate:"gte=0,lte=1"`
}

// FeatureRanking is one feature's discriminative score.
type FeatureRanking struct {
	Feature         string
	PredictionScore float64
	Rank            int
}

// AnalysisOverview summarises the dataset behind a report.
type AnalysisOverview struct {
	TotalSamples  int
	FeatureCount  int
	ValidOutcomes int
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Horizon       int
	WindowSize    int
}
