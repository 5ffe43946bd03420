// Package band maps an observation value to a template-authored band.
//
// Bands are checked in declaration order and the first containing band wins.
// A parameter without bands never classifies.
package band

import (
	"github.com/okian/benchmarks/internal/domain/coerce"
	"github.com/okian/benchmarks/internal/domain/model"
)

// Classify returns the name of the first band of p that contains v.
func Classify(p model.Parameter, v model.Value) (string, bool) {
	if len(p.Bands) == 0 || v.IsNull() {
		return "", false
	}
	if p.Type.Quantifiable() {
		f, ok := coerce.Numeric(p.Type, v)
		if !ok {
			return "", false
		}
		return byRange(p.Bands, f)
	}
	if p.Type.Known() {
		return byMatch(p.Bands, v.String())
	}
	// unknown types: ranges for numbers, matches for the rest
	if f, ok := v.Float(); ok {
		return byRange(p.Bands, f)
	}
	return byMatch(p.Bands, v.String())
}

// ClassifyNumber is Classify for a value already in the parameter's unit.
func ClassifyNumber(p model.Parameter, f float64) (string, bool) {
	return byRange(p.Bands, f)
}

func byRange(bands []model.Band, f float64) (string, bool) {
	for _, b := range bands {
		if b.Min == nil && b.Max == nil {
			continue
		}
		if b.Min != nil && f < *b.Min {
			continue
		}
		if b.Max != nil && f > *b.Max {
			continue
		}
		return b.Name, true
	}
	return "", false
}

func byMatch(bands []model.Band, s string) (string, bool) {
	for _, b := range bands {
		if b.Match != nil && *b.Match == s {
			return b.Name, true
		}
	}
	return "", false
}
