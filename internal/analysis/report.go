package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"candle-bin-lab/internal/domain"
)

// ErrMalformedReport is returned when a report cannot be decoded, and wraps
// the reason a single feature was skipped.
var ErrMalformedReport = errors.New("malformed analysis report")

// AnalysisType is the report's analysis_type value.
const AnalysisType = "feature bin vs future window high/low analysis"

// PeriodLayout formats the analysis period bounds.
const PeriodLayout = "2006-01-02 15:04:05"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Report is the serialized analysis: dataset overview plus per-bin statistics
// of the top ranked features. Bin labels are the string map keys.
type Report struct {
	AnalysisType string          `json:"analysis_type"`
	Symbol       string          `json:"symbol,omitempty"`
	DataOverview DataOverview    `json:"data_overview"`
	TopFeatures  []FeatureReport `json:"top_features"`
}

// DataOverview describes the dataset behind a report.
type DataOverview struct {
	TotalSamples        int    `json:"total_samples"`
	BinnedFeaturesCount int    `json:"binned_features_count"`
	ValidOutcomes       int    `json:"valid_outcomes"`
	Horizon             int    `json:"horizon"`
	WindowSize          int    `json:"window_size"`
	AnalysisPeriod      Period `json:"analysis_period"`
}

// Period is the first and last bar time of the dataset.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FeatureReport is one ranked feature with its per-bin statistics.
type FeatureReport struct {
	Rank              int                        `json:"rank" validate:"gte=1"`
	FeatureName       string                     `json:"feature_name" validate:"required"`
	PredictionScore   float64                    `json:"prediction_score" validate:"gte=0"`
	HighPointAnalysis map[string]domain.BinStats `json:"high_point_analysis" validate:"required,min=1,dive"`
	LowPointAnalysis  map[string]domain.BinStats `json:"low_point_analysis" validate:"required,min=1,dive"`
}

// Analysis returns the per-bin statistics for target.
func (f *FeatureReport) Analysis(target domain.Target) map[string]domain.BinStats {
	if target == domain.TargetLow {
		return f.LowPointAnalysis
	}
	return f.HighPointAnalysis
}

// Report builds the serializable report over the top ranked features.
func (r *Result) Report() *Report {
	rep := &Report{
		AnalysisType: AnalysisType,
		Symbol:       r.symbol,
		DataOverview: DataOverview{
			TotalSamples:        r.Overview.TotalSamples,
			BinnedFeaturesCount: r.Overview.FeatureCount,
			ValidOutcomes:       r.Overview.ValidOutcomes,
			Horizon:             r.Overview.Horizon,
			WindowSize:          r.Overview.WindowSize,
		},
		TopFeatures: make([]FeatureReport, 0, r.topN),
	}
	if !r.Overview.PeriodStart.IsZero() {
		rep.DataOverview.AnalysisPeriod = Period{
			Start: r.Overview.PeriodStart.UTC().Format(PeriodLayout),
			End:   r.Overview.PeriodEnd.UTC().Format(PeriodLayout),
		}
	}

	for _, rk := range r.Top() {
		fr := FeatureReport{
			Rank:              rk.Rank,
			FeatureName:       rk.Feature,
			PredictionScore:   r.round(rk.PredictionScore),
			HighPointAnalysis: make(map[string]domain.BinStats),
			LowPointAnalysis:  make(map[string]domain.BinStats),
		}
		for _, target := range domain.Targets {
			dst := fr.Analysis(target)
			for _, bin := range r.Bins(rk.Feature, target) {
				s := r.Stats[domain.StatKey{Feature: rk.Feature, Bin: bin, Target: target}]
				s.MeanPctChange = r.round(s.MeanPctChange)
				s.StdPctChange = r.round(s.StdPctChange)
				s.UpProbability = r.round(s.UpProbability)
				dst[bin.String()] = s
			}
		}
		rep.TopFeatures = append(rep.TopFeatures, fr)
	}
	return rep
}

func (r *Result) round(v float64) float64 {
	if r.precision < 0 {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(int32(r.precision)).Float64()
	return f
}

// WriteJSON writes the report as indented JSON.
func (rep *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// LoadReport decodes a report written by WriteJSON.
func LoadReport(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if rep.TopFeatures == nil {
		return nil, fmt.Errorf("%w: top_features missing", ErrMalformedReport)
	}
	return &rep, nil
}
