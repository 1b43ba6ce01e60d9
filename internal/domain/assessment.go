package domain

import "time"

// Recommendation is the action suggested by the latest scored bar.
type Recommendation string

// Recommendations, strongest first.
const (
	RecommendStrongBuy  Recommendation = "STRONG_BUY"
	RecommendBuy        Recommendation = "BUY"
	RecommendStrongSell Recommendation = "STRONG_SELL"
	RecommendSell       Recommendation = "SELL"
	RecommendHold       Recommendation = "HOLD"
)

// OrderIntent is what an order executor should do for a recommendation.
type OrderIntent string

// Order intents. The executor never opens shorts.
const (
	IntentOpenLong  OrderIntent = "OPEN_LONG"
	IntentCloseLong OrderIntent = "CLOSE_LONG"
	IntentNone      OrderIntent = "NONE"
)

// Intent maps the recommendation to an order intent.
func (r Recommendation) Intent() OrderIntent {
	switch r {
	case RecommendStrongBuy, RecommendBuy:
		return IntentOpenLong
	case RecommendStrongSell, RecommendSell:
		return IntentCloseLong
	default:
		return IntentNone
	}
}

// CandleSnapshot is the OHLC of the assessed bar.
type CandleSnapshot struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// SignalSnapshot is the scores of the assessed bar.
type SignalSnapshot struct {
	BuyScore    float64 `json:"buy_score"`
	SellScore   float64 `json:"sell_score"`
	SignalScore float64 `json:"signal_score"`
}

// CandleAnalysis is the candle shape of the assessed bar.
type CandleAnalysis struct {
	PriceChange float64 `json:"price_change"`
	PriceRange  float64 `json:"price_range"`
	BodySize    float64 `json:"body_size"`
	UpperShadow float64 `json:"upper_shadow"`
	LowerShadow float64 `json:"lower_shadow"`
}

// Assessment is the outward-facing summary of the latest scored bar.
type Assessment struct {
	Symbol         string         `json:"symbol"`
	BarTime        time.Time      `json:"bar_time"`
	AssessmentTime string         `json:"assessment_time"`
	UTCTime        string         `json:"original_utc_time"`
	Candle         CandleSnapshot `json:"candlestick_data"`
	Signals        SignalSnapshot `json:"trading_signals"`
	Analysis       CandleAnalysis `json:"analysis"`
	Recommendation Recommendation `json:"recommendation"`
	Intent         OrderIntent    `json:"order_intent"`
}

// AssessmentRecord is a persisted assessment with moving-average context.
type AssessmentRecord struct {
	Assessment
	Volume    float64   `json:"volume"`
	MA30      float64   `json:"ma30"`
	MA90      float64   `json:"ma90"`
	CreatedAt time.Time `json:"created_at"`
}
