// Package normalize scores a single observation against a stored benchmark.
package normalize

import (
	"github.com/okian/benchmarks/internal/domain/band"
	"github.com/okian/benchmarks/internal/domain/coerce"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/internal/domain/stats"
)

// Result holds the derived scores for one observation. Nil fields are
// undefined for that observation.
type Result struct {
	ZScore       *float64
	Percentile   *float64
	Band         *string
	PerformanceZ *float64
}

// Apply copies r onto o, replacing any earlier scores.
func (r Result) Apply(o *model.Observation) {
	o.ZScore = r.ZScore
	o.Percentile = r.Percentile
	o.Band = r.Band
	o.PerformanceZ = r.PerformanceZ
}

// Normalize scores v, the coerced value of an observation of p, against b.
//
// Text and choice values only receive a band. Quantifiable values need a
// benchmark; without one, or when v is null, ok is false.
func Normalize(p model.Parameter, v model.Value, b *model.Benchmark) (Result, bool) {
	if v.IsNull() {
		return Result{}, false
	}
	if !p.Type.Quantifiable() {
		name, ok := band.Classify(p, v)
		if !ok {
			return Result{}, false
		}
		return Result{Band: &name}, true
	}
	if b == nil {
		return Result{}, false
	}
	f, ok := coerce.Numeric(p.Type, v)
	if !ok {
		return Result{}, false
	}

	var r Result
	if z, ok := ZScore(f, b.Mean, b.StdDev); ok {
		z = stats.Round2(z)
		r.ZScore = &z
		perf := z
		if p.Direction == model.LowerIsBetter && perf != 0 {
			perf = -perf
		}
		r.PerformanceZ = &perf
	}
	pct := stats.Round2(PercentileRank(b, f))
	r.Percentile = &pct
	if name, ok := band.ClassifyNumber(p, f); ok {
		r.Band = &name
	}
	return r, true
}

// ZScore returns (value-mean)/stdDev. With a zero stdDev the score is 0 for a
// value equal to the mean and undefined otherwise. Stored means are rounded to
// 2 dp, so equality is judged at that precision.
func ZScore(value, mean, stdDev float64) (float64, bool) {
	if stdDev == 0 {
		if value == mean || stats.Round2(value) == stats.Round2(mean) {
			return 0, true
		}
		return 0, false
	}
	return (value - mean) / stdDev, true
}
