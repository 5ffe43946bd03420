package loadgen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/benchmarks/internal/domain/model"
)

// verifyBenchmarks checks the listed records: one record per key, count at
// least two, min <= mean <= max, and percentile values that never decrease
// as the rank grows.
func verifyBenchmarks(list []model.Benchmark) error {
	if len(list) == 0 {
		return fmt.Errorf("%w: no benchmarks listed", ErrVerification)
	}
	var errs []error
	seen := make(map[string]bool, len(list))
	for _, b := range list {
		key := b.Key.String()
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate benchmark for key %s", key))
		}
		seen[key] = true

		if b.Count < 2 {
			errs = append(errs, fmt.Errorf("benchmark %s built from %d values", key, b.Count))
		}
		if b.Min > b.Mean || b.Mean > b.Max {
			errs = append(errs, fmt.Errorf("benchmark %s has mean %.3f outside [%.3f, %.3f]", key, b.Mean, b.Min, b.Max))
		}
		if err := checkMonotonic(b.Percentiles); err != nil {
			errs = append(errs, fmt.Errorf("benchmark %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
	}
	return nil
}

func checkMonotonic(points []model.PercentilePoint) error {
	sorted := slices.Clone(points)
	slices.SortFunc(sorted, func(a, b model.PercentilePoint) int { return a.Rank - b.Rank })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Value < sorted[i-1].Value {
			return fmt.Errorf("percentile %d (%.3f) below percentile %d (%.3f)",
				sorted[i].Rank, sorted[i].Value, sorted[i-1].Rank, sorted[i-1].Value)
		}
	}
	return nil
}

// verifyNormalized checks that every reported percentile lies in 0..100.
func verifyNormalized(entries []model.Entry) error {
	var errs []error
	for _, e := range entries {
		for _, o := range e.Observations {
			if o.Percentile != nil && (*o.Percentile < 0 || *o.Percentile > 100) {
				errs = append(errs, fmt.Errorf("entry %s %s: percentile %.2f outside 0..100", e.ID, o.ParameterID, *o.Percentile))
			}
			if o.ZScore == nil && o.PerformanceZ != nil {
				errs = append(errs, fmt.Errorf("entry %s %s: performance z without z-score", e.ID, o.ParameterID))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
	}
	return nil
}
