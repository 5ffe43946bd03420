package stats

import (
	"math"
	"sort"

	"github.com/okian/benchmarks/internal/domain/model"
)

// DefaultRanks are the percentile ranks every benchmark stores.
var DefaultRanks = []int{10, 25, 50, 75, 90} //nolint:gochecknoglobals // read-only default

// Percentiles interpolates the values at ranks over ascending sorted values.
//
// For rank p and n values the 1-indexed position is x = p/100*(n-1)+1; the
// result is sorted[i-1] + frac(x)*(sorted[i]-sorted[i-1]) with i = floor(x),
// clamped to the first and last element. This is the inclusive
// (PERCENTILE.INC) method. Results are rounded to two decimals and returned in
// ascending rank order; duplicate ranks are dropped.
func Percentiles(sorted []float64, ranks []int) []model.PercentilePoint {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	if len(ranks) == 0 {
		ranks = DefaultRanks
	}

	ordered := append([]int(nil), ranks...)
	sort.Ints(ordered)

	out := make([]model.PercentilePoint, 0, len(ordered))
	for i, p := range ordered {
		if i > 0 && p == ordered[i-1] {
			continue
		}
		out = append(out, model.PercentilePoint{Rank: p, Value: Round2(At(sorted, p))})
	}
	return out
}

// At returns the unrounded interpolated value at rank p.
func At(sorted []float64, p int) float64 {
	n := len(sorted)
	x := float64(p)/100*float64(n-1) + 1
	intX := int(math.Floor(x))
	fracX := x - float64(intX)

	switch {
	case intX-1 < 0:
		return sorted[0]
	case intX >= n:
		return sorted[n-1]
	default:
		return sorted[intX-1] + fracX*(sorted[intX]-sorted[intX-1])
	}
}
