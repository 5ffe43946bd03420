package coerce

import "errors"

// Sentinel kinds for coercion errors.
var (
	ErrTypeMismatch = errors.New("type mismatch")
	ErrClockFormat  = errors.New("invalid clock time")
)
