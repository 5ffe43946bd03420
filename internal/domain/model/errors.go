package model

import "errors"

// ErrNotFound is shared by stores and services for a missing cohort,
// assessment, entry or benchmark.
var ErrNotFound = errors.New("not found")
