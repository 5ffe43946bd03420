package stats

import "errors"

// ErrAllNull is returned when no numeric value is left after filtering.
var ErrAllNull = errors.New("no numeric values")
