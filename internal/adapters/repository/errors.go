package repository

import (
	"errors"

	"github.com/okian/benchmarks/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = model.ErrNotFound
	ErrInvalidLimit  = errors.New("invalid benchmark limit")
	ErrInvalidRecord = errors.New("invalid record")
	ErrStale         = errors.New("entry changed since it was read")
)
