// Package assessment summarises the latest scored bar into a recommendation.
package assessment

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"candle-bin-lab/internal/domain"
)

// Config controls assessment building.
type Config struct {
	OffsetHours     int     // local display offset from UTC
	StrongThreshold float64 // score for STRONG_BUY / STRONG_SELL
	Threshold       float64 // score for BUY / SELL
}

// DefaultConfig returns UTC+8 with 0.75 / 0.5 thresholds.
func DefaultConfig() Config {
	return Config{
		OffsetHours:     8,
		StrongThreshold: 0.75,
		Threshold:       0.5,
	}
}

// Builder creates assessments from scored bars.
type Builder struct {
	cfg Config
	loc *time.Location
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg: cfg,
		loc: time.FixedZone(zoneName(cfg.OffsetHours), cfg.OffsetHours*3600),
		now: time.Now,
	}
}

// WithClock sets a custom clock for record creation times.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func zoneName(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d", sign, offset)
}

// Build assesses bar. Prices are rounded to 2 decimals and scores to 3.
func (b *Builder) Build(symbol string, bar domain.ScoredBar) domain.Assessment {
	utc := bar.Timestamp.UTC()
	rec := Recommend(bar.BuyScore, bar.SellScore, b.cfg.StrongThreshold, b.cfg.Threshold)

	return domain.Assessment{
		Symbol:         symbol,
		BarTime:        utc,
		AssessmentTime: utc.In(b.loc).Format("2006-01-02 15:04:05 -07"),
		UTCTime:        utc.Format("2006-01-02 15:04:05") + " UTC",
		Candle: domain.CandleSnapshot{
			Open:  round(bar.Open, 2),
			High:  round(bar.High, 2),
			Low:   round(bar.Low, 2),
			Close: round(bar.Close, 2),
		},
		Signals: domain.SignalSnapshot{
			BuyScore:    round(bar.BuyScore, 3),
			SellScore:   round(bar.SellScore, 3),
			SignalScore: round(bar.SignalScore, 3),
		},
		Analysis: domain.CandleAnalysis{
			PriceChange: round(bar.Close-bar.Open, 2),
			PriceRange:  round(bar.High-bar.Low, 2),
			BodySize:    round(math.Abs(bar.Close-bar.Open), 2),
			UpperShadow: round(bar.High-math.Max(bar.Open, bar.Close), 2),
			LowerShadow: round(math.Min(bar.Open, bar.Close)-bar.Low, 2),
		},
		Recommendation: rec,
		Intent:         rec.Intent(),
	}
}

// Recommend maps scores to a recommendation. Buy takes precedence over sell.
func Recommend(buy, sell, strong, normal float64) domain.Recommendation {
	switch {
	case buy >= strong:
		return domain.RecommendStrongBuy
	case buy >= normal:
		return domain.RecommendBuy
	case sell >= strong:
		return domain.RecommendStrongSell
	case sell >= normal:
		return domain.RecommendSell
	default:
		return domain.RecommendHold
	}
}

// Record attaches volume and the 30/90-bar close averages of bars, which must
// end at the assessed bar.
func (b *Builder) Record(a domain.Assessment, bars []domain.Bar) domain.AssessmentRecord {
	rec := domain.AssessmentRecord{
		Assessment: a,
		CreatedAt:  b.now().UTC(),
	}
	if len(bars) == 0 {
		return rec
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	rec.Volume = bars[len(bars)-1].Volume
	rec.MA30 = round(MovingAverage(closes, 30), 2)
	rec.MA90 = round(MovingAverage(closes, 90), 2)
	return rec
}

// MovingAverage is the mean of the last window values, or of all values when
// fewer are available.
func MovingAverage(values []float64, window int) float64 {
	if len(values) == 0 || window < 1 {
		return 0
	}
	if len(values) > window {
		values = values[len(values)-window:]
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Float64()
	return avg
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
