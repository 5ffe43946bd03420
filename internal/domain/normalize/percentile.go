package normalize

import (
	"sort"

	"github.com/okian/benchmarks/internal/domain/model"
)

// PercentileRank is the inverse of the benchmark's percentile curve: the rank
// at which value would sit.
//
// The stored points are anchored with Min at rank 0 and Max at rank 100, and
// the rank is interpolated linearly between the two neighbouring points. A run
// of points equal to value yields the midpoint of their ranks. Values outside
// [Min, Max] clamp to 0 or 100.
func PercentileRank(b *model.Benchmark, value float64) float64 {
	curve := curveOf(b)
	if len(curve) == 0 {
		return 0
	}

	first, last := curve[0], curve[len(curve)-1]
	switch {
	case value < first.Value:
		return 0
	case value > last.Value:
		return 100
	}

	lo, hi := -1, -1
	for i, pt := range curve {
		if pt.Value == value {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo >= 0 {
		return float64(curve[lo].Rank+curve[hi].Rank) / 2
	}

	for i := 1; i < len(curve); i++ {
		a, c := curve[i-1], curve[i]
		if value > a.Value && value < c.Value {
			frac := (value - a.Value) / (c.Value - a.Value)
			return float64(a.Rank) + frac*float64(c.Rank-a.Rank)
		}
	}
	return 100
}

func curveOf(b *model.Benchmark) []model.PercentilePoint {
	if b == nil {
		return nil
	}
	pts := make([]model.PercentilePoint, 0, len(b.Percentiles)+2)
	has0, has100 := false, false
	for _, p := range b.Percentiles {
		has0 = has0 || p.Rank == 0
		has100 = has100 || p.Rank == 100
		pts = append(pts, p)
	}
	if b.Count > 0 {
		if !has0 {
			pts = append(pts, model.PercentilePoint{Rank: 0, Value: b.Min})
		}
		if !has100 {
			pts = append(pts, model.PercentilePoint{Rank: 100, Value: b.Max})
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Rank < pts[j].Rank })
	return pts
}
