package binning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantileEdges_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	edges := quantileEdges(sorted, 5)

	want := []float64{1, 3.2, 5.4, 7.6, 9.8, 12}
	require.Len(t, edges, len(want))
	for i := range want {
		assert.InDelta(t, want[i], edges[i], 1e-9, "edge %d", i)
	}
}

func TestQuantile_DistinctValuesUseFiveBins(t *testing.T) {
	values := []float64{5, 1, 9, 3, 12, 7, 2, 8, 11, 4, 10, 6}
	bins, ok := Quantile(values, 5)
	require.True(t, ok)

	// 1..12 with edges 1, 3.2, 5.4, 7.6, 9.8, 12
	want := []int{1, 0, 3, 0, 4, 2, 0, 3, 4, 1, 4, 2}
	assert.Equal(t, want, bins)
}

func TestQuantile_ConstantCollapses(t *testing.T) {
	bins, ok := Quantile([]float64{3, 3, 3, 3}, 5)
	assert.False(t, ok)
	assert.Nil(t, bins)
}

func TestQuantile_DuplicateEdgesAreCompacted(t *testing.T) {
	// Heavily tied values: several quantile edges coincide.
	values := []float64{1, 1, 1, 1, 1, 1, 1, 1, 2, 3, 3, 3}
	bins, ok := Quantile(values, 5)
	require.True(t, ok)

	used := map[int]bool{}
	for _, b := range bins {
		used[b] = true
	}
	for b := 0; b < len(used); b++ {
		assert.True(t, used[b], "ordinal %d unused", b)
	}
	assert.Equal(t, bins[0], bins[7], "ties share a bin")
	assert.Less(t, bins[0], bins[11])
}

func TestQuantile_MissingValues(t *testing.T) {
	nan := math.NaN()
	bins, ok := Quantile([]float64{1, nan, 2, 3, nan, 4}, 2)
	require.True(t, ok)
	assert.Equal(t, missingBin, bins[1])
	assert.Equal(t, missingBin, bins[4])
	assert.Equal(t, 0, bins[0])
	assert.Equal(t, 1, bins[5])
}

func TestEqualWidth(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
		want   []int
	}{
		{
			name:   "weekdays over full range",
			values: []float64{0, 1, 2, 3, 4, 5, 6},
			n:      7,
			want:   []int{0, 1, 2, 3, 4, 5, 6},
		},
		{
			name:   "partial weekday range",
			values: []float64{2, 3, 4},
			n:      7,
			want:   []int{0, 3, 6},
		},
		{
			name:   "constant lands in middle bin",
			values: []float64{7, 7, 7},
			n:      4,
			want:   []int{1, 1, 1},
		},
		{
			name:   "nan is missing",
			values: []float64{0, math.NaN(), 4},
			n:      4,
			want:   []int{0, missingBin, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EqualWidth(tt.values, tt.n))
		})
	}
}

func TestEqualWidth_AllMissing(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, []int{missingBin, missingBin}, EqualWidth([]float64{nan, nan}, 4))
}
