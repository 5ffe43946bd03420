package model

import "time"

// ParameterType is the declared type of an assessment parameter.
type ParameterType string

const (
	TypeNumeric ParameterType = "numeric"
	TypeTime    ParameterType = "time"
	TypeText    ParameterType = "text"
	TypeRating  ParameterType = "rating"
	TypeChoice  ParameterType = "choice"
)

// Quantifiable reports whether values of t are benchmarked numerically.
func (t ParameterType) Quantifiable() bool {
	switch t {
	case TypeNumeric, TypeTime, TypeRating:
		return true
	default:
		return false
	}
}

// Known reports whether t is one of the declared parameter types.
func (t ParameterType) Known() bool {
	switch t {
	case TypeNumeric, TypeTime, TypeText, TypeRating, TypeChoice:
		return true
	default:
		return false
	}
}

// Direction says which way a parameter's values improve.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
	Nominal        Direction = "nominal"
)

// Band is a named qualitative classification authored on a template.
// Numeric bands set Min and/or Max (inclusive); categorical bands set Match.
type Band struct {
	Name        string   `json:"name"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Match       *string  `json:"value,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Parameter is one measured quantity on an assessment template.
type Parameter struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Unit      string        `json:"unit,omitempty"`
	Type      ParameterType `json:"type"`
	Bands     []Band        `json:"bands,omitempty"`
	Direction Direction     `json:"direction,omitempty"`
}

// Assessment is a template: an ordered list of parameters.
type Assessment struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Parameter returns the parameter with id.
func (a *Assessment) Parameter(id string) (Parameter, bool) {
	for _, p := range a.Parameters {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// Cohort is the population a benchmark is computed over (a session).
type Cohort struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Roster    []string  `json:"roster,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
