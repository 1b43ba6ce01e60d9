package analysis

import "candle-bin-lab/internal/domain"

// ForwardOutcomes computes, for every bar i, the max high and min low over
// bars i+1..i+horizon relative to close[i]. Bars with fewer than horizon
// following bars get an invalid outcome.
//
// When window > 0 the horizon is truncated at the end of bar i's binning
// block; the last bar of each block then has no valid outcome.
func ForwardOutcomes(bars []domain.Bar, horizon, window int) []domain.Outcome {
	n := len(bars)
	out := make([]domain.Outcome, n)
	if horizon < 1 {
		return out
	}

	for i := 0; i < n; i++ {
		last := i + horizon
		if last > n-1 {
			continue
		}
		if window > 0 {
			blockEnd := (i/window+1)*window - 1
			if blockEnd > n-1 {
				blockEnd = n - 1
			}
			if last > blockEnd {
				last = blockEnd
			}
			if last <= i {
				continue
			}
		}

		hi := bars[i+1].High
		lo := bars[i+1].Low
		for j := i + 2; j <= last; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}

		c := bars[i].Close
		o := domain.Outcome{
			Valid:      true,
			FutureHigh: hi,
			FutureLow:  lo,
			HighPct:    (hi - c) / c,
			LowPct:     (lo - c) / c,
		}
		o.HighUp = o.HighPct > 0
		o.LowDown = o.LowPct < 0
		out[i] = o
	}
	return out
}

// pctAndDirection returns the percentage move and directional label for target.
func pctAndDirection(o domain.Outcome, target domain.Target) (float64, bool) {
	if target == domain.TargetLow {
		return o.LowPct, o.LowDown
	}
	return o.HighPct, o.HighUp
}
