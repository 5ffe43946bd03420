package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/benchmarks/internal/adapters/repository"
	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/internal/domain/normalize"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

const (
	normalizeRetries = 2
	normalizeBackoff = 10 * time.Millisecond
)

// CalculateBenchmarks recomputes the benchmarks in scope synchronously.
func (s *Service) CalculateBenchmarks(ctx context.Context, req benchmark.Request) (benchmark.Result, error) {
	if req.CohortID == "" {
		return benchmark.Result{}, invalid("cohort_id is required")
	}
	return s.calc.Calculate(ctx, req)
}

// GetBenchmarks lists stored benchmarks. A zero limit means the configured
// maximum; larger limits are capped to it.
func (s *Service) GetBenchmarks(ctx context.Context, f model.BenchmarkFilter) ([]model.Benchmark, error) {
	switch {
	case f.Limit < 0:
		return nil, invalid("limit must not be negative")
	case f.Limit == 0 || f.Limit > s.maxLimit:
		f.Limit = s.maxLimit
	}
	return s.store.ListBenchmarks(ctx, f)
}

// DeleteBenchmarks drops stored benchmarks of one cohort, optionally narrowed
// further by f. They are derived state and can be recalculated at will.
func (s *Service) DeleteBenchmarks(ctx context.Context, f model.BenchmarkFilter) (int, error) {
	if f.CohortID == "" {
		return 0, invalid("cohort_id is required")
	}
	n, err := s.store.DeleteBenchmarks(ctx, f)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "benchmarks deleted",
		logger.String("cohort_id", f.CohortID),
		logger.String("assessment_id", f.AssessmentID),
		logger.Int("deleted", n),
	)
	return n, nil
}

// NormalizeEntry scores every observation of an entry against the currently
// stored benchmarks and writes the scores back. Observations without a
// usable benchmark end up with no scores.
func (s *Service) NormalizeEntry(ctx context.Context, id string) (model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordNormalizationLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	}()

	var out model.Entry
	op := func() error {
		e, err := s.normalizeOnce(ctx, id)
		if errors.Is(err, repository.ErrStale) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		out = e
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(normalizeBackoff), normalizeRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return model.Entry{}, err
	}
	return out, nil
}

func (s *Service) normalizeOnce(ctx context.Context, id string) (model.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return model.Entry{}, err
	}
	a, err := s.store.GetAssessment(ctx, e.AssessmentID)
	if err != nil {
		return model.Entry{}, fmt.Errorf("assessment %s: %w", e.AssessmentID, err)
	}

	cache := make(map[string]*model.Benchmark)
	for i := range e.Observations {
		o := &e.Observations[i]
		p, ok := a.Parameter(o.ParameterID)
		if !ok {
			// The template lost the parameter after submission.
			o.ClearNormalization()
			metrics.RecordNormalization("unknown_parameter")
			continue
		}

		var bm *model.Benchmark
		if p.Type.Quantifiable() {
			if bm, ok = cache[p.ID]; !ok {
				bm, err = s.benchmarkFor(ctx, &e, p.ID)
				if err != nil {
					return model.Entry{}, err
				}
				cache[p.ID] = bm
			}
		}

		res, ok := normalize.Normalize(p, o.Value, bm)
		if !ok {
			o.ClearNormalization()
			metrics.RecordNormalization(skipReason(p, o, bm))
			continue
		}
		res.Apply(o)
		metrics.RecordNormalization("scored")
	}

	if err := s.store.SaveScores(ctx, e.ID, e.Observations); err != nil {
		return model.Entry{}, fmt.Errorf("save scores: %w", err)
	}
	return e, nil
}

func skipReason(p model.Parameter, o *model.Observation, bm *model.Benchmark) string {
	switch {
	case o.Value.IsNull():
		return "null_value"
	case p.Type.Quantifiable() && bm == nil:
		return "no_benchmark"
	default:
		return "no_band"
	}
}

// benchmarkFor picks the most specific stored benchmark for the entry's
// strata: age and gender, then age only, then gender only, then the whole
// cohort. It returns nil when none exists.
func (s *Service) benchmarkFor(ctx context.Context, e *model.Entry, parameterID string) (*model.Benchmark, error) {
	for _, key := range candidateKeys(e, parameterID) {
		b, err := s.store.GetBenchmark(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", key, err)
		}
		return &b, nil
	}
	return nil, nil
}

func candidateKeys(e *model.Entry, parameterID string) []model.BenchmarkKey {
	base := model.BenchmarkKey{CohortID: e.CohortID, AssessmentID: e.AssessmentID, ParameterID: parameterID}
	var age, gender *string
	if e.AgeGroup != "" {
		age = &e.AgeGroup
	}
	if e.Gender != "" {
		gender = &e.Gender
	}

	keys := make([]model.BenchmarkKey, 0, 4)
	add := func(a, g *string) {
		k := base
		k.AgeGroup, k.Gender = a, g
		keys = append(keys, k)
	}
	if age != nil && gender != nil {
		add(age, gender)
	}
	if age != nil {
		add(age, nil)
	}
	if gender != nil {
		add(nil, gender)
	}
	add(nil, nil)
	return keys
}
