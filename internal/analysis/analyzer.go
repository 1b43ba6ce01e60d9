// Package analysis measures how each feature bin relates to future price extremes
// and ranks features by how well their bins separate directional probability.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"candle-bin-lab/internal/domain"
)

// Config controls the BinPerformanceAnalyzer.
type Config struct {
	Horizon             int
	TopN                int
	ClipHorizonToWindow bool
	ReportPrecision     int // decimals kept in the report; negative keeps full precision
	Workers             int // parallel feature workers; <= 0 means one per feature
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		Horizon:         12,
		TopN:            8,
		ReportPrecision: 4,
	}
}

// Analyzer is the BinPerformanceAnalyzer.
type Analyzer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg Config, logger zerolog.Logger) (*Analyzer, error) {
	if cfg.Horizon < 1 {
		return nil, fmt.Errorf("horizon must be >= 1, got %d", cfg.Horizon)
	}
	if cfg.TopN < 1 {
		return nil, fmt.Errorf("top_n must be >= 1, got %d", cfg.TopN)
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With().Str("stage", "analysis").Logger(),
	}, nil
}

// Result is the full analysis of one binned series.
type Result struct {
	Overview domain.AnalysisOverview
	Outcomes []domain.Outcome
	// Stats holds every (feature, bin, target) with at least one valid sample.
	Stats map[domain.StatKey]domain.BinStats
	// Rankings covers every feature, best first.
	Rankings []domain.FeatureRanking

	topN      int
	precision int
	symbol    string
}

// featureResult is the per-feature output of one worker.
type featureResult struct {
	stats map[domain.StatKey]domain.BinStats
	score float64
}

// Analyze computes forward outcomes, per-bin statistics for every binned
// column and the feature ranking. Features are processed in parallel; the
// result does not depend on scheduling.
func (a *Analyzer) Analyze(ctx context.Context, binned *domain.BinnedSeries) (*Result, error) {
	window := 0
	if a.cfg.ClipHorizonToWindow {
		window = binned.WindowSize
	}
	outcomes := ForwardOutcomes(binned.Bars, a.cfg.Horizon, window)

	valid := 0
	for _, o := range outcomes {
		if o.Valid {
			valid++
		}
	}

	results := make([]featureResult, len(binned.Columns))
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Workers > 0 {
		g.SetLimit(a.cfg.Workers)
	}
	for i, col := range binned.Columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeFeature(col, outcomes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze features: %w", err)
	}

	res := &Result{
		Overview: domain.AnalysisOverview{
			TotalSamples:  len(binned.Bars),
			FeatureCount:  len(binned.Columns),
			ValidOutcomes: valid,
			Horizon:       a.cfg.Horizon,
			WindowSize:    binned.WindowSize,
		},
		Outcomes:  outcomes,
		Stats:     make(map[domain.StatKey]domain.BinStats),
		Rankings:  make([]domain.FeatureRanking, 0, len(binned.Columns)),
		topN:      a.cfg.TopN,
		precision: a.cfg.ReportPrecision,
		symbol:    binned.Symbol,
	}
	if n := len(binned.Bars); n > 0 {
		res.Overview.PeriodStart = binned.Bars[0].Timestamp
		res.Overview.PeriodEnd = binned.Bars[n-1].Timestamp
	}

	for i, col := range binned.Columns {
		for k, v := range results[i].stats {
			res.Stats[k] = v
		}
		res.Rankings = append(res.Rankings, domain.FeatureRanking{
			Feature:         col.Name,
			PredictionScore: results[i].score,
		})
	}
	rankFeatures(res.Rankings)

	a.logger.Debug().
		Int("bars", len(binned.Bars)).
		Int("valid_outcomes", valid).
		Int("features", len(binned.Columns)).
		Int("stat_entries", len(res.Stats)).
		Msg("analysis complete")

	return res, nil
}

// analyzeFeature groups valid outcomes by the column's bin label.
func analyzeFeature(col domain.BinnedColumn, outcomes []domain.Outcome) featureResult {
	fr := featureResult{stats: make(map[domain.StatKey]domain.BinStats)}

	var targetScores []float64
	for _, target := range domain.Targets {
		pcts := make(map[domain.BinLabel][]float64)
		ups := make(map[domain.BinLabel]int)
		for i, label := range col.Labels {
			if label.Missing() || i >= len(outcomes) || !outcomes[i].Valid {
				continue
			}
			pct, up := pctAndDirection(outcomes[i], target)
			pcts[label] = append(pcts[label], pct)
			if up {
				ups[label]++
			}
		}

		labels := make([]domain.BinLabel, 0, len(pcts))
		for l := range pcts {
			labels = append(labels, l)
		}
		domain.SortLabels(labels)

		probs := make([]float64, 0, len(labels))
		for _, l := range labels {
			s := binStats(pcts[l], ups[l])
			fr.stats[domain.StatKey{Feature: col.Name, Bin: l, Target: target}] = s
			probs = append(probs, s.UpProbability)
		}
		targetScores = append(targetScores, sampleStd(probs))
	}

	fr.score = stat.Mean(targetScores, nil)
	return fr
}

func binStats(pcts []float64, up int) domain.BinStats {
	n := len(pcts)
	return domain.BinStats{
		SampleCount:   n,
		MeanPctChange: stat.Mean(pcts, nil),
		StdPctChange:  sampleStd(pcts),
		UpCount:       up,
		UpProbability: float64(up) / float64(n),
	}
}

// sampleStd is the n-1 standard deviation, 0 for fewer than two values.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd := stat.StdDev(values, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}

// rankFeatures sorts by score descending, then name, and assigns 1-based ranks.
func rankFeatures(r []domain.FeatureRanking) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].PredictionScore != r[j].PredictionScore {
			return r[i].PredictionScore > r[j].PredictionScore
		}
		return r[i].Feature < r[j].Feature
	})
	for i := range r {
		r[i].Rank = i + 1
	}
}

// Top returns the best TopN rankings.
func (r *Result) Top() []domain.FeatureRanking {
	if len(r.Rankings) <= r.topN {
		return r.Rankings
	}
	return r.Rankings[:r.topN]
}

// Bins returns the bins observed for a feature and target in label order.
func (r *Result) Bins(feature string, target domain.Target) []domain.BinLabel {
	var labels []domain.BinLabel
	for k := range r.Stats {
		if k.Feature == feature && k.Target == target {
			labels = append(labels, k.Bin)
		}
	}
	domain.SortLabels(labels)
	return labels
}
