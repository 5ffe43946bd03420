package service

import (
	"time"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recalculation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recalculation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many pending recalculation keys are tracked.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithAutoRecalculate turns background recalculation after entry writes on or off.
func WithAutoRecalculate(on bool) Option {
	return func(s *Service) {
		s.autoRecalc = on
	}
}

// WithMinSampleSize sets the fewest values a benchmark is computed from.
func WithMinSampleSize(n int) Option {
	return func(s *Service) {
		s.minSample = n
	}
}

// WithPercentileRanks sets the ranks stored on every benchmark.
func WithPercentileRanks(ranks []int) Option {
	return func(s *Service) {
		s.ranks = append([]int(nil), ranks...)
	}
}

// WithMaxBenchmarkLimit caps how many benchmarks one query returns.
func WithMaxBenchmarkLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithAgeGroups sets the brackets used to derive an entry's age group.
func WithAgeGroups(groups []model.AgeGroup) Option {
	return func(s *Service) {
		s.ageGroups = append([]model.AgeGroup(nil), groups...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new entity ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
