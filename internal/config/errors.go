package config

import "errors"

var (
	// ErrInvalidConfig marks a value that loaded but fails Validate.
	ErrInvalidConfig = errors.New("config: invalid value")
	// ErrLoadConfig marks a file, env or unmarshal failure in Load.
	ErrLoadConfig = errors.New("config: cannot load")
)
