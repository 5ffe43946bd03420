// Package stats computes cohort-level population statistics and percentile
// curves for benchmark records.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds population statistics over a set of observations.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Compute returns count, mean, population standard deviation, min and max of
// the finite values in values. It returns ErrAllNull when none remain.
//
// StdDev divides by n: the cohort is treated as the whole population.
func Compute(values []float64) (Summary, error) {
	clean := Finite(values)
	if len(clean) == 0 {
		return Summary{}, ErrAllNull
	}
	mean, std := stat.PopMeanStdDev(clean, nil)
	return Summary{
		Count:  len(clean),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(clean),
		Max:    floats.Max(clean),
	}, nil
}

// Rounded returns s with every numeric field rounded for storage.
func (s Summary) Rounded() Summary {
	return Summary{
		Count:  s.Count,
		Mean:   Round2(s.Mean),
		StdDev: Round2(s.StdDev),
		Min:    Round2(s.Min),
		Max:    Round2(s.Max),
	}
}

// Finite returns the values that are neither NaN nor infinite.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Sorted returns an ascending copy of the finite values.
func Sorted(values []float64) []float64 {
	out := Finite(values)
	sort.Float64s(out)
	return out
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
