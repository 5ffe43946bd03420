// Package coerce narrows raw submitted values to the declared parameter type.
//
// It is the only place where a model.Value changes variant. Callers keep the
// original raw value next to the coerced one.
package coerce

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

// MismatchError reports a raw value that cannot be read as its parameter type.
type MismatchError struct {
	ParameterID   string
	ParameterName string
	Type          model.ParameterType
	Raw           model.Value
}

func (e *MismatchError) Error() string {
	name := e.ParameterName
	if name == "" {
		name = e.ParameterID
	}
	return fmt.Sprintf("parameter %q expects %s, got %q", name, e.Type, e.Raw.String())
}

// Unwrap lets errors.Is match ErrTypeMismatch.
func (e *MismatchError) Unwrap() error { return ErrTypeMismatch }

// Value coerces raw to t. unknown is true when t is not a declared type, in
// which case raw is returned unchanged.
func Value(t model.ParameterType, raw model.Value) (v model.Value, unknown bool, err error) {
	switch t {
	case model.TypeNumeric, model.TypeRating:
		v, err = number(raw)
		return v, false, err
	case model.TypeTime:
		return clock(raw), false, nil
	case model.TypeText, model.TypeChoice:
		if raw.IsNull() {
			return model.Null(), false, nil
		}
		return model.Text(raw.String()), false, nil
	default:
		return raw, true, nil
	}
}

func number(raw model.Value) (model.Value, error) {
	switch raw.Kind() {
	case model.KindNull:
		return model.Null(), nil
	case model.KindNumber:
		f, _ := raw.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return model.Null(), ErrTypeMismatch
		}
		return raw, nil
	}
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return model.Null(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return model.Null(), ErrTypeMismatch
	}
	return model.Number(f), nil
}

// clock keeps numbers and strings as submitted; conversion of clock strings is
// the separate ClockSeconds step.
func clock(raw model.Value) model.Value {
	if s, ok := raw.Str(); ok && strings.TrimSpace(s) == "" {
		return model.Null()
	}
	return raw
}

// Coercer applies Value with logging and metrics.
type Coercer struct {
	log logger.Logger
}

// New returns a Coercer logging through log.
func New(log logger.Logger) *Coercer {
	if log == nil {
		log = logger.Nop()
	}
	return &Coercer{log: log}
}

// Coerce narrows raw for parameter p. A failure returns *MismatchError.
func (c *Coercer) Coerce(ctx context.Context, p model.Parameter, raw model.Value) (model.Value, error) {
	v, unknown, err := Value(p.Type, raw)
	if unknown {
		c.log.Warn(ctx, "unknown parameter type; value passed through",
			logger.String("parameter", p.ID),
			logger.String("type", string(p.Type)),
		)
		return v, nil
	}
	if err != nil {
		metrics.RecordCoercionFailure(string(p.Type))
		return model.Null(), &MismatchError{ParameterID: p.ID, ParameterName: p.Name, Type: p.Type, Raw: raw}
	}
	return v, nil
}

// Observation coerces o.Raw in place, keeping Raw verbatim.
func (c *Coercer) Observation(ctx context.Context, p model.Parameter, o *model.Observation) error {
	v, err := c.Coerce(ctx, p, o.Raw)
	if err != nil {
		o.Value = model.Null()
		return err
	}
	o.Value = v
	return nil
}
