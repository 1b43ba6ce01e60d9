package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"candle-bin-lab/internal/domain"
)

// sharpeAnnualisation scales the per-trade mean/std ratio.
var sharpeAnnualisation = math.Sqrt(365)

// computeSummary calculates the statistic set of a trade ledger.
// Trades are sorted by ExitTime ASC, TradeID ASC before computing
// order-dependent metrics (equity, MaxDrawdown).
// Returns are the leveraged pnl of each trade.
func computeSummary(trades []domain.Trade) domain.Summary {
	n := len(trades)
	if n == 0 {
		return domain.Summary{FinalEquity: 1}
	}

	sorted := sortByExit(trades)

	wins := 0
	losses := 0
	returns := make([]float64, n)
	for i, t := range sorted {
		returns[i] = t.PnLLeveraged
		switch {
		case t.PnLLeveraged > 0:
			wins++
		case t.PnLLeveraged < 0:
			losses++
		}
	}

	curve := computeEquityCurve(sorted)
	final := 1.0
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}

	return domain.Summary{
		TotalTrades:   n,
		WinningTrades: wins,
		LosingTrades:  losses,
		WinRate:       computeWinRate(wins, n),
		TotalReturn:   computeSum(returns),
		AvgReturn:     stat.Mean(returns, nil),
		MaxReturn:     maxOf(returns),
		MinReturn:     minOf(returns),
		SharpeRatio:   computeSharpe(returns),
		MaxDrawdown:   computeMaxDrawdown(returns),
		FinalEquity:   final,
	}
}

// Monthly groups a stored ledger by exit month, as the simulator does for a fresh run.
func Monthly(trades []domain.Trade) []domain.MonthlySummary {
	return computeMonthly(trades)
}

// computeMonthly groups trades by the UTC month of their exit time.
// Months are returned in ascending order.
func computeMonthly(trades []domain.Trade) []domain.MonthlySummary {
	byMonth := make(map[string][]domain.Trade)
	for _, t := range trades {
		m := t.ExitTime.UTC().Format("2006-01")
		byMonth[m] = append(byMonth[m], t)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]domain.MonthlySummary, 0, len(months))
	for _, m := range months {
		out = append(out, domain.MonthlySummary{
			Month:   m,
			Summary: computeSummary(byMonth[m]),
		})
	}
	return out
}

func sortByExit(trades []domain.Trade) []domain.Trade {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExitTime.Equal(sorted[j].ExitTime) {
			return sorted[i].ExitTime.Before(sorted[j].ExitTime)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})
	return sorted
}

// computeEquityCurve compounds (1 + leveraged pnl) from 1.0 in the given order.
func computeEquityCurve(trades []domain.Trade) []domain.EquityPoint {
	curve := make([]domain.EquityPoint, 0, len(trades))
	equity := 1.0
	peak := 1.0
	for _, t := range trades {
		equity *= 1 + t.PnLLeveraged
		if equity > peak {
			peak = equity
		}
		curve = append(curve, domain.EquityPoint{
			Time:     t.ExitTime,
			Equity:   equity,
			Peak:     peak,
			Drawdown: drawdown(peak, equity),
		})
	}
	return curve
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// computeSharpe is mean/std * sqrt(365) over per-trade returns.
// Returns 0 for fewer than 2 trades or zero deviation.
func computeSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * sharpeAnnualisation
}

// computeMaxDrawdown calculates the worst (peak - equity) / peak on the
// compounded equity curve starting at 1.0.
// Returns must be in chronological order.
func computeMaxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	maxDrawdown := 0.0

	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := drawdown(peak, equity); dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

func drawdown(peak, equity float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (peak - equity) / peak
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
