package benchmark

import "time"

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithMinSampleSize sets how many values a parameter needs to be benchmarked.
// Values below 2 are ignored.
func WithMinSampleSize(n int) Option {
	return func(c *Calculator) {
		if n >= 2 {
			c.minSample = n
		}
	}
}

// WithPercentileRanks sets the ranks stored on every benchmark.
func WithPercentileRanks(ranks []int) Option {
	return func(c *Calculator) {
		valid := make([]int, 0, len(ranks))
		for _, r := range ranks {
			if r >= 0 && r <= 100 {
				valid = append(valid, r)
			}
		}
		if len(valid) > 0 {
			c.ranks = valid
		}
	}
}

// WithClock replaces the time source for CalculatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}
