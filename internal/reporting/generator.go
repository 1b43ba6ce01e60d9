package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/backtest"
	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore        storage.RunStore
	tradeStore      storage.TradeStore
	assessmentStore storage.AssessmentStore // optional
	analysis        *analysis.Report        // optional
	now             func() time.Time        // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, tradeStore storage.TradeStore) *Generator {
	return &Generator{
		runStore:   runStore,
		tradeStore: tradeStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithAssessments attaches the latest stored assessment of the run's symbol.
func (g *Generator) WithAssessments(store storage.AssessmentStore) *Generator {
	g.assessmentStore = store
	return g
}

// WithAnalysis adds the ranked features of the analysis that produced the run.
func (g *Generator) WithAnalysis(r *analysis.Report) *Generator {
	g.analysis = r
	return g
}

// Generate produces the report of one run.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return g.generate(ctx, run)
}

// GenerateLatest produces the report of the newest run of symbol.
func (g *Generator) GenerateLatest(ctx context.Context, symbol string) (*Report, error) {
	runs, err := g.runStore.ListBySymbol(ctx, symbol, 1)
	if err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", symbol, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs for %s: %w", symbol, storage.ErrNotFound)
	}
	return g.generate(ctx, runs[0])
}

func (g *Generator) generate(ctx context.Context, run *domain.RunSummary) (*Report, error) {
	stored, err := g.tradeStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load trades of %s: %w", run.RunID, err)
	}
	trades := make([]domain.Trade, len(stored))
	for i, t := range stored {
		trades[i] = *t
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run:         *run,
		Monthly:     backtest.Monthly(trades),
		Trades:      trades,
	}

	if g.analysis != nil && (g.analysis.Symbol == "" || g.analysis.Symbol == run.Symbol) {
		report.TopFeatures = FeatureRows(g.analysis)
	}

	if g.assessmentStore != nil {
		rec, err := g.assessmentStore.Latest(ctx, run.Symbol)
		switch {
		case err == nil:
			a := rec.Assessment
			report.Assessment = &a
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load latest assessment of %s: %w", run.Symbol, err)
		}
	}

	return report, nil
}

// FeatureRows summarizes the ranked features of an analysis report.
// For each feature the bin with the highest and lowest up_probability is picked;
// ties go to the smaller bin name.
func FeatureRows(r *analysis.Report) []FeatureRow {
	rows := make([]FeatureRow, 0, len(r.TopFeatures))
	for _, f := range r.TopFeatures {
		row := FeatureRow{
			Rank:            f.Rank,
			FeatureName:     f.FeatureName,
			PredictionScore: f.PredictionScore,
		}
		row.BestHighBin, row.BestHighProb = extremeBin(f.HighPointAnalysis, func(a, b float64) bool { return a > b })
		row.BestLowBin, row.BestLowProb = extremeBin(f.LowPointAnalysis, func(a, b float64) bool { return a < b })
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows
}

func extremeBin(stats map[string]domain.BinStats, better func(a, b float64) bool) (string, float64) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var bestName string
	var bestProb float64
	for i, name := range names {
		p := stats[name].UpProbability
		if i == 0 || better(p, bestProb) {
			bestName, bestProb = name, p
		}
	}
	return bestName, bestProb
}
