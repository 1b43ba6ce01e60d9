package domain

import "time"

// ScoredBar is one bar of ScoreCalculator output.
// BuyWeight and SellWeight are the total prediction-score weight that voted;
// zero weight means every feature was excluded, not that features voted zero.
type ScoredBar struct {
	Timestamp   time.Time `json:"timestamp"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	BuyScore    float64   `json:"buy_score"`
	SellScore   float64   `json:"sell_score"`
	SignalScore float64   `json:"signal_score"`
	BuyWeight   float64   `json:"buy_weight"`
	SellWeight  float64   `json:"sell_weight"`
}

// HasVotes reports whether at least one feature contributed to either score.
func (s ScoredBar) HasVotes() bool {
	return s.BuyWeight > 0 || s.SellWeight > 0
}

// ScoredBarRecord is a persisted scored bar of one run.
type ScoredBarRecord struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	ScoredBar
}
