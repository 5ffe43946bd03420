package model

import "time"

// Observation is one parameter value within an entry.
type Observation struct {
	ParameterID string `json:"parameter_id"`
	// Raw is the value exactly as submitted.
	Raw Value `json:"raw_value"`
	// Value is Raw after coercion to the parameter type.
	Value Value  `json:"value"`
	Note  string `json:"note,omitempty"`

	ZScore       *float64 `json:"z_score,omitempty"`
	Percentile   *float64 `json:"percentile,omitempty"`
	Band         *string  `json:"band,omitempty"`
	PerformanceZ *float64 `json:"performance_z,omitempty"`
}

// ClearNormalization drops scores derived from a benchmark.
func (o *Observation) ClearNormalization() {
	o.ZScore = nil
	o.Percentile = nil
	o.Band = nil
	o.PerformanceZ = nil
}

// Entry is one athlete's submission for a cohort, batch and assessment.
type Entry struct {
	ID           string        `json:"id"`
	CohortID     string        `json:"cohort_id"`
	BatchID      string        `json:"batch_id,omitempty"`
	AssessmentID string        `json:"assessment_id"`
	AthleteID    string        `json:"athlete_id"`
	Attempt      int           `json:"attempt"`
	Age          *int          `json:"age,omitempty"`
	AgeGroup     string        `json:"age_group,omitempty"`
	Gender       string        `json:"gender,omitempty"`
	Observations []Observation `json:"observations"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AgeGroup is a named inclusive age bracket used for stratification.
type AgeGroup struct {
	Name   string `json:"name" koanf:"name"`
	MinAge int    `json:"min_age" koanf:"min_age"`
	MaxAge int    `json:"max_age" koanf:"max_age"`
}

// AgeGroupFor returns the first bracket containing age.
func AgeGroupFor(age int, groups []AgeGroup) (string, bool) {
	for _, g := range groups {
		if age >= g.MinAge && age <= g.MaxAge {
			return g.Name, true
		}
	}
	return "", false
}
