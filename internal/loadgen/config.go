// Package loadgen drives a running benchmark service with synthetic
// athlete entries and checks the benchmarks it derives from them.
package loadgen

import (
	"fmt"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumEntries int           // Number of entries to generate
	Workers    int           // Number of concurrent submitters
	Samples    int           // Entries normalized after the calculation
	Timeout    time.Duration // HTTP request timeout
	MaxRetries uint64        // Retries for throttled or failed requests
	OutputFile string        // Where generated entries are written; empty skips
	Verbose    bool
}

// Validate rejects configurations Run cannot execute.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrConfig)
	case c.NumEntries <= 0:
		return fmt.Errorf("%w: entries must be positive", ErrConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrConfig)
	case c.Samples < 0:
		return fmt.Errorf("%w: samples must not be negative", ErrConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	EntriesGenerated  int
	EntriesSubmitted  int
	EntriesSuccessful int
	EntriesFailed     int
	Throttled         int // 429 answers that were retried
	BenchmarksCreated int
	BenchmarksUpdated int
	BenchmarksListed  int
	EntriesNormalized int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
