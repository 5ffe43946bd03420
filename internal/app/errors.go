package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/benchmarks/internal/domain/model"
)

// Sentinel kinds for service errors.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownParameter = fmt.Errorf("unknown parameter: %w", model.ErrNotFound)
	ErrBusy             = errors.New("recalculation queue full")
)

// ObservationError reports why one observation of an entry was rejected.
type ObservationError struct {
	Index       int    `json:"index"`
	ParameterID string `json:"parameter_id"`
	Err         error  `json:"-"`
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observation %d (%s): %v", e.Index, e.ParameterID, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }

// EntryError collects every rejected observation of one entry. Nothing is
// stored when it is returned.
type EntryError struct {
	Observations []*ObservationError
}

func (e *EntryError) Error() string {
	msgs := make([]string, len(e.Observations))
	for i, o := range e.Observations {
		msgs[i] = o.Error()
	}
	return "entry rejected: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the per-observation causes to errors.Is and errors.As.
func (e *EntryError) Unwrap() []error {
	errs := make([]error, len(e.Observations))
	for i, o := range e.Observations {
		errs[i] = o
	}
	return errs
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
