package benchmark

import (
	"errors"

	"github.com/okian/benchmarks/internal/domain/model"
)

// Sentinel kinds for calculation errors.
var (
	// ErrNotFound means the cohort or a requested assessment does not exist.
	ErrNotFound = model.ErrNotFound
	// ErrNoData means the requested scope holds no quantifiable value at all.
	ErrNoData = errors.New("no quantifiable data in scope")
	// ErrInsufficientSample marks a parameter skipped for having fewer values
	// than the minimum sample. It is logged and counted, never returned.
	ErrInsufficientSample = errors.New("insufficient sample")
)
