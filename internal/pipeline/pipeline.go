// Package pipeline runs BinningEngine -> BinPerformanceAnalyzer ->
// ScoreCalculator -> BacktestSimulator over one series and hands the
// outcome to the configured stores, cache and publishers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/assessment"
	"candle-bin-lab/internal/backtest"
	"candle-bin-lab/internal/binning"
	"candle-bin-lab/internal/cache"
	"candle-bin-lab/internal/config"
	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/idhash"
	"candle-bin-lab/internal/observability"
	"candle-bin-lab/internal/scoring"
	"candle-bin-lab/internal/storage"
)

// Stores are the optional persistence targets. Nil stores are skipped.
type Stores struct {
	Runs        storage.RunStore
	Trades      storage.TradeStore
	Assessments storage.AssessmentStore
	Bars        storage.BarStore
	ScoredBars  storage.ScoredBarStore
}

// Publisher receives newly stored assessments. notify.Fanout satisfies it.
type Publisher interface {
	Publish(ctx context.Context, a domain.Assessment) error
}

// Pipeline wires the four stages with their side outputs.
type Pipeline struct {
	binner    *binning.Engine
	analyzer  *analysis.Analyzer
	scorer    *scoring.Calculator
	simulator *backtest.Simulator
	assessor  *assessment.Builder
	binKey    string // binning settings, part of the run config hash

	stores    Stores
	cache     *cache.SignalCache
	publisher Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	clock     func() time.Time
}

// New builds a pipeline from the stage sections of cfg.
func New(cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	binner, err := binning.NewEngine(cfg.BinningEngine(), logger)
	if err != nil {
		return nil, fmt.Errorf("binning: %w", err)
	}
	analyzer, err := analysis.NewAnalyzer(cfg.Analyzer(), logger)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	simulator, err := backtest.NewSimulator(cfg.Simulator(), logger)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	return &Pipeline{
		binner:    binner,
		analyzer:  analyzer,
		scorer:    scoring.NewCalculator(logger, scoring.WithWorkers(cfg.Analysis.Workers)),
		simulator: simulator,
		assessor:  assessment.NewBuilder(cfg.AssessmentBuilder()),
		binKey:    fmt.Sprintf("%+v", cfg.BinningEngine()),
		logger:    logger.With().Str("component", "pipeline").Logger(),
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithStores enables persistence of the run.
func (p *Pipeline) WithStores(s Stores) *Pipeline {
	p.stores = s
	return p
}

// WithCache caches the latest assessment and analysis report.
func (p *Pipeline) WithCache(c *cache.SignalCache) *Pipeline {
	p.cache = c
	return p
}

// WithPublisher publishes each new assessment.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// WithMetrics records stage metrics.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock sets a custom clock for run and assessment creation times.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	p.assessor = p.assessor.WithClock(clock)
	return p
}

// Result holds the output of every stage.
type Result struct {
	Symbol        string
	Binned        *domain.BinnedSeries
	BinStats      binning.Stats
	Analysis      *analysis.Result // nil when scored against a loaded report
	Report        *analysis.Report
	Table         *analysis.Table
	Scores        *scoring.Result
	Backtest      *backtest.Result
	Run           domain.RunSummary
	Assessment    *domain.Assessment // nil when the series has no scored bars
	Record        *domain.AssessmentRecord
	NewAssessment bool // the assessment was not stored before
}

// Run executes every stage on series, analysing it to build the statistics table.
// A structurally invalid series fails with domain.ErrInvalidSeries before any stage runs.
func (p *Pipeline) Run(ctx context.Context, series *domain.Series) (res *Result, err error) {
	defer func() { p.recordRun(err) }()

	if err := series.Validate(); err != nil {
		return nil, err
	}

	res = &Result{Symbol: series.Symbol}
	p.bin(series, res)

	start := time.Now()
	ar, err := p.analyzer.Analyze(ctx, res.Binned)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	p.observe(observability.StageAnalysis, start)
	res.Analysis = ar
	res.Report = ar.Report()
	res.Table = analysis.NewTable(res.Report)
	if p.metrics != nil {
		p.metrics.ReportsGenerated.Inc()
	}

	if err := p.finish(ctx, series, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RunWithReport executes the pipeline with the statistics table built from a
// previously generated report instead of analysing the series. Malformed
// report features are skipped and listed in Result.Table.Skipped.
func (p *Pipeline) RunWithReport(ctx context.Context, series *domain.Series, rep *analysis.Report) (res *Result, err error) {
	defer func() { p.recordRun(err) }()

	if err := series.Validate(); err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("%w: nil report", analysis.ErrMalformedReport)
	}

	res = &Result{Symbol: series.Symbol, Report: rep}
	p.bin(series, res)
	res.Table = analysis.NewTable(rep)

	if err := p.finish(ctx, series, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) bin(series *domain.Series, res *Result) {
	start := time.Now()
	res.Binned, res.BinStats = p.binner.Bin(series)
	p.observe(observability.StageBinning, start)

	if p.metrics != nil {
		p.metrics.DegenerateBlocks.WithLabelValues("degenerate").Add(float64(res.BinStats.DegenerateBlocks))
		p.metrics.DegenerateBlocks.WithLabelValues("empty").Add(float64(res.BinStats.EmptyBlocks))
		p.metrics.DegenerateBlocks.WithLabelValues("categorical").Add(float64(res.BinStats.CategoricalBlocks))
	}
}

// finish runs scoring, backtest and assessment, then the side outputs.
func (p *Pipeline) finish(ctx context.Context, series *domain.Series, res *Result) error {
	for _, s := range res.Table.Skipped {
		p.logger.Warn().Err(s.Err).Str("feature", s.Feature).Msg("feature skipped")
	}

	start := time.Now()
	scores, err := p.scorer.Score(ctx, res.Binned, res.Table)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	p.observe(observability.StageScoring, start)
	res.Scores = scores
	p.recordScores(res)

	start = time.Now()
	res.Backtest = p.simulator.RunWithConfigHash(series.Symbol, p.configHash(res.Report), scores.Bars)
	p.observe(observability.StageBacktest, start)
	res.Run = res.Backtest.RunSummary(p.clock())
	if p.metrics != nil {
		p.metrics.TradesSimulated.Add(float64(len(res.Backtest.Trades)))
	}

	start = time.Now()
	if latest, ok := scores.Latest(); ok {
		a := p.assessor.Build(series.Symbol, latest)
		rec := p.assessor.Record(a, series.Bars)
		res.Assessment = &a
		res.Record = &rec
		if p.metrics != nil {
			p.metrics.LatestBuyScore.Set(latest.BuyScore)
			p.metrics.LatestSellScore.Set(latest.SellScore)
			p.metrics.Recommendations.WithLabelValues(string(a.Recommendation)).Inc()
		}
	}
	p.observe(observability.StageAssessment, start)

	start = time.Now()
	if err := p.persist(ctx, series, res); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	p.observe(observability.StagePersist, start)

	p.deliver(ctx, res)

	p.logger.Info().
		Str("symbol", res.Symbol).
		Str("run_id", res.Run.RunID).
		Int("bars", series.Len()).
		Int("features", len(res.Table.Features())).
		Int("trades", res.Run.TotalTrades).
		Float64("total_return", res.Run.TotalReturn).
		Msg("pipeline complete")
	return nil
}

// configHash digests what the scores depend on besides the bars: the binning
// settings and the statistics of the report (which carry the analysis settings).
// Map values print with sorted keys, so the digest is deterministic.
func (p *Pipeline) configHash(rep *analysis.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%+v", rep.DataOverview)
	for _, f := range rep.TopFeatures {
		fmt.Fprintf(&sb, "|%d:%s:%v:%v:%v", f.Rank, f.FeatureName, f.PredictionScore, f.HighPointAnalysis, f.LowPointAnalysis)
	}
	return idhash.ComputeConfigHash(p.binKey, sb.String())
}

// persist writes the run, its trades, new bars, scored bars and the
// assessment. Records already stored by an identical earlier run are skipped.
func (p *Pipeline) persist(ctx context.Context, series *domain.Series, res *Result) error {
	s := p.stores

	if s.Bars != nil {
		if err := p.persistBars(ctx, series); err != nil {
			return err
		}
	}

	runStored := false
	if s.Runs != nil {
		run := res.Run
		err := p.timed("runs", "insert", func() error { return s.Runs.Insert(ctx, &run) })
		switch {
		case err == nil:
			runStored = true
		case errors.Is(err, storage.ErrDuplicateKey):
			p.logger.Debug().Str("run_id", run.RunID).Msg("run already stored")
		default:
			return fmt.Errorf("insert run: %w", err)
		}
	}

	// Trades reference their run, so they are written only with a new run.
	if s.Trades != nil && (runStored || s.Runs == nil) && len(res.Backtest.Trades) > 0 {
		trades := make([]*domain.Trade, len(res.Backtest.Trades))
		for i := range res.Backtest.Trades {
			trades[i] = &res.Backtest.Trades[i]
		}
		err := p.timed("trades", "insert_bulk", func() error { return s.Trades.InsertBulk(ctx, trades) })
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert trades: %w", err)
		}
	}

	if s.ScoredBars != nil && len(res.Scores.Bars) > 0 {
		records := make([]*domain.ScoredBarRecord, len(res.Scores.Bars))
		for i, b := range res.Scores.Bars {
			records[i] = &domain.ScoredBarRecord{RunID: res.Run.RunID, Symbol: res.Symbol, ScoredBar: b}
		}
		err := p.timed("scored_bars", "insert_bulk", func() error { return s.ScoredBars.InsertBulk(ctx, records) })
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert scored bars: %w", err)
		}
	}

	if res.Record == nil {
		return nil
	}
	if s.Assessments == nil {
		res.NewAssessment = true
		return nil
	}
	err := p.timed("assessments", "insert", func() error { return s.Assessments.Insert(ctx, res.Record) })
	switch {
	case err == nil:
		res.NewAssessment = true
	case errors.Is(err, storage.ErrDuplicateKey):
		p.logger.Debug().
			Str("symbol", res.Symbol).
			Time("bar_time", res.Record.BarTime).
			Msg("assessment already stored, skipping")
	default:
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// persistBars stores the bars newer than the newest stored one.
func (p *Pipeline) persistBars(ctx context.Context, series *domain.Series) error {
	var latest time.Time
	err := p.timed("bars", "latest", func() error {
		var err error
		latest, err = p.stores.Bars.Latest(ctx, series.Symbol)
		return err
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("latest bar: %w", err)
	}

	var fresh []*domain.BarRecord
	for _, r := range series.Records() {
		if latest.IsZero() || r.Timestamp.After(latest) {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	err = p.timed("bars", "insert_bulk", func() error { return p.stores.Bars.InsertBulk(ctx, fresh) })
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("insert bars: %w", err)
	}
	p.logger.Debug().Str("symbol", series.Symbol).Int("bars", len(fresh)).Msg("bars stored")
	return nil
}

// deliver refreshes the cache and publishes a new assessment.
// Failures are logged; the run itself already succeeded.
func (p *Pipeline) deliver(ctx context.Context, res *Result) {
	if p.cache != nil {
		if res.Assessment != nil {
			if err := p.cache.SetAssessment(ctx, *res.Assessment); err != nil {
				p.logger.Warn().Err(err).Str("symbol", res.Symbol).Msg("cache assessment failed")
			}
		}
		if res.Report != nil {
			if err := p.cache.SetReport(ctx, res.Report); err != nil {
				p.logger.Warn().Err(err).Str("symbol", res.Symbol).Msg("cache report failed")
			}
		}
	}

	if p.publisher != nil && res.Assessment != nil && res.NewAssessment {
		if err := p.publisher.Publish(ctx, *res.Assessment); err != nil {
			p.logger.Warn().Err(err).Str("symbol", res.Symbol).Msg("publish assessment failed")
		}
	}
}

func (p *Pipeline) recordScores(res *Result) {
	latest, _ := res.Scores.Latest()
	p.logger.Debug().
		Int("bars", len(res.Scores.Bars)).
		Int("features", len(res.Scores.Features)).
		Int("buy_unseen", res.Scores.Buy.UnseenBin).
		Int("sell_unseen", res.Scores.Sell.UnseenBin).
		Float64("latest_buy", latest.BuyScore).
		Float64("latest_sell", latest.SellScore).
		Msg("scores computed")

	if p.metrics == nil {
		return
	}
	p.metrics.BarsScored.Add(float64(len(res.Scores.Bars)))
	p.metrics.SkippedFeatures.Add(float64(len(res.Table.Skipped)))
	for side, t := range map[string]scoring.Tally{"buy": res.Scores.Buy, "sell": res.Scores.Sell} {
		p.metrics.Votes.WithLabelValues(side, scoring.VoteCounted.String()).Add(float64(t.Counted))
		p.metrics.Votes.WithLabelValues(side, scoring.VoteUnseenBin.String()).Add(float64(t.UnseenBin))
		p.metrics.Votes.WithLabelValues(side, scoring.VoteMissingValue.String()).Add(float64(t.MissingValue))
		p.metrics.Votes.WithLabelValues(side, scoring.VoteMissingColumn.String()).Add(float64(t.MissingColumn))
	}
}

func (p *Pipeline) timed(store, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.metrics != nil {
		// Not-found and duplicate are expected answers, not query failures.
		counted := err
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrDuplicateKey) {
			counted = nil
		}
		p.metrics.RecordDBQuery(store, op, start, counted)
	}
	return err
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, start)
	}
}

func (p *Pipeline) recordRun(err error) {
	if p.metrics != nil {
		p.metrics.RecordPipelineRun(err)
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("pipeline failed")
	}
}
