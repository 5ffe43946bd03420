package model

import "time"

// BenchmarkKey identifies one benchmark. A nil stratum applies to the whole
// cohort regardless of that dimension.
type BenchmarkKey struct {
	CohortID     string  `json:"cohort_id"`
	AssessmentID string  `json:"assessment_id"`
	ParameterID  string  `json:"parameter_id"`
	AgeGroup     *string `json:"age_group"`
	Gender       *string `json:"gender"`
}

// String renders the key in a stable form usable as a map key.
func (k BenchmarkKey) String() string {
	return k.CohortID + "|" + k.AssessmentID + "|" + k.ParameterID + "|" + stratum(k.AgeGroup) + "|" + stratum(k.Gender)
}

func stratum(s *string) string {
	if s == nil {
		return "*"
	}
	return "=" + *s
}

// PercentilePoint is one sample of a benchmark's percentile curve.
type PercentilePoint struct {
	Rank  int     `json:"rank"`
	Value float64 `json:"value"`
}

// Benchmark is the derived population summary for one key.
type Benchmark struct {
	ID            string            `json:"id"`
	Key           BenchmarkKey      `json:"key"`
	ParameterName string            `json:"parameter_name"`
	Unit          string            `json:"unit,omitempty"`
	Count         int               `json:"count"`
	Min           float64           `json:"min"`
	Max           float64           `json:"max"`
	Mean          float64           `json:"mean"`
	StdDev        float64           `json:"std_dev"`
	Percentiles   []PercentilePoint `json:"percentiles"`
	CalculatedAt  time.Time         `json:"last_calculated"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Percentile returns the stored value at rank.
func (b *Benchmark) Percentile(rank int) (float64, bool) {
	for _, p := range b.Percentiles {
		if p.Rank == rank {
			return p.Value, true
		}
	}
	return 0, false
}

// BenchmarkFilter selects benchmarks. Empty string fields match anything;
// AgeGroup/Gender use StratumFilter to distinguish "any" from "whole cohort".
type BenchmarkFilter struct {
	CohortID     string
	AssessmentID string
	ParameterID  string
	AgeGroup     StratumFilter
	Gender       StratumFilter
	Limit        int
}

// StratumFilter matches a stratification dimension.
type StratumFilter struct {
	// Set restricts matches; when false any stratum matches.
	Set bool
	// Value is the required stratum; nil requires the whole-cohort record.
	Value *string
}

// Matches reports whether s satisfies the filter.
func (f StratumFilter) Matches(s *string) bool {
	if !f.Set {
		return true
	}
	if f.Value == nil || s == nil {
		return f.Value == nil && s == nil
	}
	return *f.Value == *s
}

// Matches reports whether b satisfies the filter.
func (f BenchmarkFilter) Matches(b *Benchmark) bool {
	switch {
	case f.CohortID != "" && b.Key.CohortID != f.CohortID:
		return false
	case f.AssessmentID != "" && b.Key.AssessmentID != f.AssessmentID:
		return false
	case f.ParameterID != "" && b.Key.ParameterID != f.ParameterID:
		return false
	}
	return f.AgeGroup.Matches(b.Key.AgeGroup) && f.Gender.Matches(b.Key.Gender)
}

// ObservationQuery selects observations for one parameter in a cohort.
// Empty AgeGroup/Gender mean "no filter".
type ObservationQuery struct {
	CohortID     string
	AssessmentID string
	ParameterID  string
	AgeGroup     string
	Gender       string
}
