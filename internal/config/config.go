// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config holding every default.
// - Load layers a YAML file and BENCH_* environment variables on top.
// - Validate errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/okian/benchmarks/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the recalculation job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recalculation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps how many pending recalculations are tracked.
	DedupeSize int `koanf:"dedupe_size"`

	// AutoRecalculate queues a recalculation after every entry write.
	AutoRecalculate bool `koanf:"auto_recalculate"`

	// MinSampleSize is the fewest values a parameter needs to be benchmarked.
	MinSampleSize int `koanf:"min_sample_size"`

	// PercentileRanks are stored on every benchmark.
	PercentileRanks []int `koanf:"percentile_ranks"`

	// MaxBenchmarkLimit caps GET /benchmarks?limit.
	MaxBenchmarkLimit int `koanf:"max_benchmark_limit"`

	// AgeGroups derive an entry's age group from its age, first match wins.
	AgeGroups []model.AgeGroup `koanf:"age_groups"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        10_000,
		AutoRecalculate:   true,
		MinSampleSize:     2,
		PercentileRanks:   []int{10, 25, 50, 75, 90},
		MaxBenchmarkLimit: 500,
		AgeGroups: []model.AgeGroup{
			{Name: "U12", MinAge: 0, MaxAge: 11},
			{Name: "U14", MinAge: 12, MaxAge: 13},
			{Name: "U16", MinAge: 14, MaxAge: 15},
			{Name: "U18", MinAge: 16, MaxAge: 17},
			{Name: "Senior", MinAge: 18, MaxAge: 150},
		},
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MinSampleSize < 2:
		return fmt.Errorf("%w: min_sample_size must be at least 2", ErrInvalidConfig)
	case c.MaxBenchmarkLimit <= 0:
		return fmt.Errorf("%w: max_benchmark_limit must be positive", ErrInvalidConfig)
	case len(c.PercentileRanks) == 0:
		return fmt.Errorf("%w: percentile_ranks must not be empty", ErrInvalidConfig)
	}
	for _, r := range c.PercentileRanks {
		if r < 0 || r > 100 {
			return fmt.Errorf("%w: percentile rank %d outside 0..100", ErrInvalidConfig, r)
		}
	}
	seen := make(map[string]bool, len(c.AgeGroups))
	for _, g := range c.AgeGroups {
		switch {
		case g.Name == "":
			return fmt.Errorf("%w: age group without name", ErrInvalidConfig)
		case g.MinAge > g.MaxAge:
			return fmt.Errorf("%w: age group %q has min_age above max_age", ErrInvalidConfig, g.Name)
		case seen[g.Name]:
			return fmt.Errorf("%w: duplicate age group %q", ErrInvalidConfig, g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}
