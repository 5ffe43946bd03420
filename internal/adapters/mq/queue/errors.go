package queue

import "errors"

var (
	// ErrClosed is returned by Enqueue and Dequeue after Close.
	ErrClosed = errors.New("recalc queue: closed")
	// ErrFull is returned when capacity pending jobs are already waiting.
	ErrFull = errors.New("recalc queue: full")
)
