// Package scoring turns per-bin statistics into weighted per-bar buy and sell scores.
package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/domain"
)

// VoteStatus tells whether a feature contributed to one side of a bar's score.
type VoteStatus int

// Vote statuses. Only VoteCounted adds to the numerator and the weight.
const (
	VoteCounted VoteStatus = iota
	VoteUnseenBin
	VoteMissingValue
	VoteMissingColumn
)

func (s VoteStatus) String() string {
	switch s {
	case VoteCounted:
		return "counted"
	case VoteUnseenBin:
		return "unseen_bin"
	case VoteMissingValue:
		return "missing_value"
	case VoteMissingColumn:
		return "missing_column"
	default:
		return fmt.Sprintf("VoteStatus(%d)", int(s))
	}
}

// Vote is one feature's contribution to one bar.
type Vote struct {
	Feature   string
	Weight    float64
	Buy       VoteStatus
	Sell      VoteStatus
	BuyValue  float64 // up probability of the high target
	SellValue float64 // 1 - up probability of the low target
	BinLabel  domain.BinLabel
}

// Tally counts vote outcomes over a whole scoring pass, per side.
type Tally struct {
	Counted       int
	UnseenBin     int
	MissingValue  int
	MissingColumn int
}

func (t *Tally) add(s VoteStatus) {
	switch s {
	case VoteCounted:
		t.Counted++
	case VoteUnseenBin:
		t.UnseenBin++
	case VoteMissingValue:
		t.MissingValue++
	case VoteMissingColumn:
		t.MissingColumn++
	}
}

func (t *Tally) merge(o Tally) {
	t.Counted += o.Counted
	t.UnseenBin += o.UnseenBin
	t.MissingValue += o.MissingValue
	t.MissingColumn += o.MissingColumn
}

// Result is the ScoreCalculator output.
type Result struct {
	Bars     []domain.ScoredBar
	Features []domain.FeatureRanking // features that took part
	Buy      Tally
	Sell     Tally
}

// Latest returns the last scored bar.
func (r *Result) Latest() (domain.ScoredBar, bool) {
	if len(r.Bars) == 0 {
		return domain.ScoredBar{}, false
	}
	return r.Bars[len(r.Bars)-1], true
}

// Calculator is the ScoreCalculator.
type Calculator struct {
	logger  zerolog.Logger
	workers int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithWorkers limits the number of features scored in parallel.
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		c.workers = n
	}
}

// NewCalculator creates a Calculator.
func NewCalculator(logger zerolog.Logger, opts ...Option) *Calculator {
	c := &Calculator{logger: logger.With().Str("stage", "scoring").Logger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contribution holds one feature's per-bar weighted sums.
type contribution struct {
	buySum, buyWeight   []float64
	sellSum, sellWeight []float64
	buy, sell           Tally
}

// Score computes buy, sell and signal scores for every bar of binned.
// Every ranked feature with a positive prediction score votes; a feature whose
// bin is unseen or whose value is missing is left out of both the weighted sum
// and the total weight for that side.
func (c *Calculator) Score(ctx context.Context, binned *domain.BinnedSeries, table *analysis.Table) (*Result, error) {
	n := len(binned.Bars)

	var features []domain.FeatureRanking
	for _, f := range table.Features() {
		if f.PredictionScore > 0 {
			features = append(features, f)
		}
	}

	contribs := make([]contribution, len(features))
	g, gctx := errgroup.WithContext(ctx)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	}
	for i, f := range features {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contribs[i] = scoreFeature(f, binned, table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score features: %w", err)
	}

	buySum := make([]float64, n)
	buyWeight := make([]float64, n)
	sellSum := make([]float64, n)
	sellWeight := make([]float64, n)
	res := &Result{Features: features}

	// Reduce in rank order so float sums do not depend on scheduling.
	for _, ct := range contribs {
		res.Buy.merge(ct.buy)
		res.Sell.merge(ct.sell)
		if ct.buySum == nil {
			continue
		}
		for i := 0; i < n; i++ {
			buySum[i] += ct.buySum[i]
			buyWeight[i] += ct.buyWeight[i]
			sellSum[i] += ct.sellSum[i]
			sellWeight[i] += ct.sellWeight[i]
		}
	}

	res.Bars = make([]domain.ScoredBar, n)
	for i, b := range binned.Bars {
		buy := ratio(buySum[i], buyWeight[i])
		sell := ratio(sellSum[i], sellWeight[i])
		res.Bars[i] = domain.ScoredBar{
			Timestamp:   b.Timestamp,
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			BuyScore:    buy,
			SellScore:   sell,
			SignalScore: buy - sell,
			BuyWeight:   buyWeight[i],
			SellWeight:  sellWeight[i],
		}
	}

	c.logger.Debug().
		Int("bars", n).
		Int("features", len(features)).
		Int("buy_counted", res.Buy.Counted).
		Int("buy_unseen", res.Buy.UnseenBin).
		Int("sell_unseen", res.Sell.UnseenBin).
		Int("missing_values", res.Buy.MissingValue).
		Int("missing_columns", res.Buy.MissingColumn).
		Msg("scoring complete")

	return res, nil
}

func scoreFeature(f domain.FeatureRanking, binned *domain.BinnedSeries, table *analysis.Table) contribution {
	var ct contribution
	col, ok := binned.Column(f.Feature)
	if !ok {
		ct.buy.add(VoteMissingColumn)
		ct.sell.add(VoteMissingColumn)
		return ct
	}

	n := len(binned.Bars)
	ct.buySum = make([]float64, n)
	ct.buyWeight = make([]float64, n)
	ct.sellSum = make([]float64, n)
	ct.sellWeight = make([]float64, n)

	for i := 0; i < n && i < len(col.Labels); i++ {
		v := vote(f, col.Labels[i], table)
		ct.buy.add(v.Buy)
		ct.sell.add(v.Sell)
		if v.Buy == VoteCounted {
			ct.buySum[i] = v.Weight * v.BuyValue
			ct.buyWeight[i] = v.Weight
		}
		if v.Sell == VoteCounted {
			ct.sellSum[i] = v.Weight * v.SellValue
			ct.sellWeight[i] = v.Weight
		}
	}
	return ct
}

func vote(f domain.FeatureRanking, label domain.BinLabel, table *analysis.Table) Vote {
	v := Vote{Feature: f.Feature, Weight: f.PredictionScore, BinLabel: label}
	if label.Missing() {
		v.Buy, v.Sell = VoteMissingValue, VoteMissingValue
		return v
	}

	if s, ok := table.Lookup(f.Feature, label, domain.TargetHigh); ok {
		v.Buy = VoteCounted
		v.BuyValue = s.UpProbability
	} else {
		v.Buy = VoteUnseenBin
	}
	if s, ok := table.Lookup(f.Feature, label, domain.TargetLow); ok {
		v.Sell = VoteCounted
		v.SellValue = 1 - s.UpProbability
	} else {
		v.Sell = VoteUnseenBin
	}
	return v
}

// Votes explains how each scoring feature voted on bar i.
func (c *Calculator) Votes(binned *domain.BinnedSeries, table *analysis.Table, i int) []Vote {
	var votes []Vote
	for _, f := range table.Features() {
		if f.PredictionScore <= 0 {
			continue
		}
		col, ok := binned.Column(f.Feature)
		if !ok || i < 0 || i >= len(col.Labels) {
			votes = append(votes, Vote{Feature: f.Feature, Weight: f.PredictionScore, Buy: VoteMissingColumn, Sell: VoteMissingColumn})
			continue
		}
		votes = append(votes, vote(f, col.Labels[i], table))
	}
	return votes
}

// ratio returns sum/weight clamped to [0,1], or 0 without weight.
func ratio(sum, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	r := sum / weight
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
