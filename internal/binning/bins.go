package binning

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// missingBin marks a NaN input value.
const missingBin = -1

// Quantile assigns each value to one of q quantile bins computed over the
// non-missing values. Duplicate edges are dropped and the surviving bins are
// renumbered densely, so every returned ordinal is used by at least one value.
// ok is false when fewer than two distinct edges remain (constant input).
func Quantile(values []float64, q int) (bins []int, ok bool) {
	present := presentValues(values)
	if len(present) == 0 || q < 1 {
		return nil, false
	}
	sort.Float64s(present)

	edges := uniqueEdges(quantileEdges(present, q))
	if len(edges) < 2 {
		return nil, false
	}

	bins = make([]int, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			bins[i] = missingBin
			continue
		}
		bins[i] = rightClosedIndex(v, edges)
	}
	return compact(bins), true
}

// EqualWidth assigns each value to one of n equal-width bins spanning the
// observed range, right-closed with the lowest edge nudged down by 0.1% of
// the range. A constant input lands every value in the middle bin.
func EqualWidth(values []float64, n int) []int {
	bins := make([]int, len(values))
	present := presentValues(values)
	if len(present) == 0 || n < 1 {
		for i := range bins {
			bins[i] = missingBin
		}
		return bins
	}

	lo, hi := floats.Min(present), floats.Max(present)
	if lo == hi {
		for i, v := range values {
			if math.IsNaN(v) {
				bins[i] = missingBin
				continue
			}
			bins[i] = (n - 1) / 2
		}
		return bins
	}

	width := (hi - lo) / float64(n)
	edges := make([]float64, n+1)
	for j := range edges {
		edges[j] = lo + float64(j)*width
	}
	edges[0] -= (hi - lo) * 0.001
	edges[n] = hi

	for i, v := range values {
		if math.IsNaN(v) {
			bins[i] = missingBin
			continue
		}
		bins[i] = rightClosedIndex(v, edges)
	}
	return bins
}

// quantileEdges returns the q+1 quantiles of sorted at 0, 1/q, ..., 1 using
// linear interpolation between closest ranks.
func quantileEdges(sorted []float64, q int) []float64 {
	n := len(sorted)
	edges := make([]float64, q+1)
	for j := 0; j <= q; j++ {
		pos := float64(j) * float64(n-1) / float64(q)
		lower := int(math.Floor(pos))
		if lower >= n-1 {
			edges[j] = sorted[n-1]
			continue
		}
		frac := pos - float64(lower)
		edges[j] = sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
	}
	return edges
}

func uniqueEdges(edges []float64) []float64 {
	out := make([]float64, 0, len(edges))
	for i, e := range edges {
		if i > 0 && e == out[len(out)-1] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// rightClosedIndex finds j such that edges[j] < v <= edges[j+1]; values at or
// below the first edge go to bin 0, values above the last to the last bin.
func rightClosedIndex(v float64, edges []float64) int {
	last := len(edges) - 2
	for j := 1; j < len(edges); j++ {
		if v <= edges[j] {
			return j - 1
		}
	}
	return last
}

// compact renumbers used bin ordinals to 0..m-1, keeping their order.
func compact(bins []int) []int {
	used := make(map[int]struct{})
	for _, b := range bins {
		if b != missingBin {
			used[b] = struct{}{}
		}
	}
	ordered := make([]int, 0, len(used))
	for b := range used {
		ordered = append(ordered, b)
	}
	sort.Ints(ordered)

	remap := make(map[int]int, len(ordered))
	for i, b := range ordered {
		remap[b] = i
	}
	for i, b := range bins {
		if b != missingBin {
			bins[i] = remap[b]
		}
	}
	return bins
}

func presentValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func hasValue(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}
