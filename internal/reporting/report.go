package reporting

import (
	"sort"
	"time"

	"candle-bin-lab/internal/domain"
)

// Report is a complete backtest report of one run.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Run         domain.RunSummary       `json:"run"`
	Monthly     []domain.MonthlySummary `json:"monthly"`
	Trades      []domain.Trade          `json:"trades"`
	TopFeatures []FeatureRow            `json:"top_features"`
	Assessment  *domain.Assessment      `json:"assessment,omitempty"`
}

// FeatureRow is one ranked feature of the analysis behind the run.
type FeatureRow struct {
	Rank            int     `json:"rank"`
	FeatureName     string  `json:"feature_name"`
	PredictionScore float64 `json:"prediction_score"`
	BestHighBin     string  `json:"best_high_bin"` // bin with the largest up_probability
	BestHighProb    float64 `json:"best_high_up_probability"`
	BestLowBin      string  `json:"best_low_bin"` // bin with the smallest up_probability
	BestLowProb     float64 `json:"best_low_up_probability"`
}

// ExitReasonCount is the number of trades closed for one reason.
type ExitReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ExitReasons counts the report's trades per exit reason, sorted by reason.
func (r *Report) ExitReasons() []ExitReasonCount {
	counts := make(map[string]int)
	for _, t := range r.Trades {
		counts[t.ExitReason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	out := make([]ExitReasonCount, 0, len(reasons))
	for _, reason := range reasons {
		out = append(out, ExitReasonCount{Reason: reason, Count: counts[reason]})
	}
	return out
}
