package repository

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

type storeConfig struct {
	now          func() time.Time
	newID        func() string
	maxRetryTime time.Duration
}

// Option configures a store.
type Option func(*storeConfig)

// WithClock replaces the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator replaces the generator used for new benchmark ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *storeConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithMaxRetryTime bounds how long a busy SQLite write is retried.
func WithMaxRetryTime(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.maxRetryTime = d
		}
	}
}

func (c *storeConfig) backOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = c.maxRetryTime
	return bo
}
