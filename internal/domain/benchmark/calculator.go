// Package benchmark computes cohort benchmarks: for every quantifiable
// parameter in scope it gathers the stored observations, summarises them and
// upserts one record per (cohort, assessment, parameter, stratum).
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/benchmarks/internal/domain/coerce"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/internal/domain/stats"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

const defaultMinSample = 2

// Store is what the calculator reads and writes.
type Store interface {
	GetCohort(ctx context.Context, id string) (model.Cohort, error)
	GetAssessment(ctx context.Context, id string) (model.Assessment, error)
	AssessmentsWithEntries(ctx context.Context, cohortID string) ([]string, error)
	ObservationValues(ctx context.Context, q model.ObservationQuery) ([]model.Value, error)
	UpsertBenchmark(ctx context.Context, b model.Benchmark) (model.Benchmark, error)
	DeleteBenchmark(ctx context.Context, key model.BenchmarkKey) (bool, error)
}

// Request scopes a calculation run. Empty filters mean "all".
type Request struct {
	CohortID     string `json:"cohort_id"`
	AssessmentID string `json:"assessment_id,omitempty"`
	AgeGroup     string `json:"age_group,omitempty"`
	Gender       string `json:"gender,omitempty"`
}

// Result reports how many benchmark records a run wrote.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	// Removed counts records dropped because their key fell below the
	// minimum sample.
	Removed int `json:"removed,omitempty"`
}

// Calculator runs benchmark calculations.
type Calculator struct {
	store     Store
	log       logger.Logger
	minSample int
	ranks     []int
	now       func() time.Time
}

// New returns a Calculator over store.
func New(store Store, log logger.Logger, opts ...Option) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	c := &Calculator{
		store:     store,
		log:       log.Named("calculator"),
		minSample: defaultMinSample,
		ranks:     stats.DefaultRanks,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate recomputes every benchmark in the scope of req.
//
// A parameter with too few values is skipped; the run fails with ErrNoData
// only when the scope has no quantifiable value at all. Records written
// before a failing upsert stay written.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := c.calculate(ctx, req)
	outcome := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrNoData):
		outcome = "no_data"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordCalculationRun(outcome, float64(time.Since(start).Nanoseconds())/1e6)
	return res, err
}

func (c *Calculator) calculate(ctx context.Context, req Request) (Result, error) {
	var res Result
	if _, err := c.store.GetCohort(ctx, req.CohortID); err != nil {
		return res, fmt.Errorf("calculate benchmarks: %w", err)
	}

	assessments, err := c.assessments(ctx, req)
	if err != nil {
		return res, err
	}
	if len(assessments) == 0 {
		return res, fmt.Errorf("cohort %q: %w", req.CohortID, ErrNoData)
	}

	log := c.log.With(logger.String("cohort", req.CohortID))
	calculatedAt := c.now()
	consumed, skipped := 0, 0

	for _, a := range assessments {
		for _, p := range a.Parameters {
			if !p.Type.Quantifiable() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}

			key := model.BenchmarkKey{
				CohortID:     req.CohortID,
				AssessmentID: a.ID,
				ParameterID:  p.ID,
				AgeGroup:     stratum(req.AgeGroup),
				Gender:       stratum(req.Gender),
			}
			values, err := c.values(ctx, key, p)
			if err != nil {
				return res, err
			}
			consumed += len(values)

			if len(values) < c.minSample {
				skipped++
				metrics.RecordParameterSkipped("insufficient_sample")
				log.Info(ctx, "parameter skipped",
					logger.String("assessment", a.ID),
					logger.String("parameter", p.ID),
					logger.Int("values", len(values)),
					logger.Error(ErrInsufficientSample))
				removed, err := c.store.DeleteBenchmark(ctx, key)
				if err != nil {
					return res, fmt.Errorf("drop benchmark %s: %w", key, err)
				}
				if removed {
					res.Removed++
				}
				continue
			}

			b, err := c.summarise(key, p, values, calculatedAt)
			if err != nil {
				return res, err
			}
			stored, err := c.store.UpsertBenchmark(ctx, b)
			if err != nil {
				return res, fmt.Errorf("store benchmark %s: %w", key, err)
			}
			created := stored.CreatedAt.Equal(stored.UpdatedAt)
			metrics.RecordBenchmarkWritten(created)
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
	}

	metrics.RecordObservationsConsumed(consumed)
	if consumed == 0 {
		return res, fmt.Errorf("cohort %q: %w", req.CohortID, ErrNoData)
	}
	log.Info(ctx, "benchmarks calculated",
		logger.Int("created", res.Created),
		logger.Int("updated", res.Updated),
		logger.Int("removed", res.Removed),
		logger.Int("skipped", skipped),
		logger.Int("values", consumed))
	return res, nil
}

// assessments resolves the templates to process: the requested one, or every
// template with an entry in the cohort.
func (c *Calculator) assessments(ctx context.Context, req Request) ([]model.Assessment, error) {
	if req.AssessmentID != "" {
		a, err := c.store.GetAssessment(ctx, req.AssessmentID)
		if err != nil {
			return nil, fmt.Errorf("calculate benchmarks: %w", err)
		}
		return []model.Assessment{a}, nil
	}

	ids, err := c.store.AssessmentsWithEntries(ctx, req.CohortID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]model.Assessment, 0, len(ids))
	for _, id := range ids {
		a, err := c.store.GetAssessment(ctx, id)
		if errors.Is(err, ErrNotFound) {
			c.log.Warn(ctx, "entries reference a missing assessment",
				logger.String("cohort", req.CohortID), logger.String("assessment", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get assessment %q: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// values returns the numeric observations for one parameter. Time strings
// go through ClockSeconds; values that cannot be read as numbers are dropped.
func (c *Calculator) values(ctx context.Context, key model.BenchmarkKey, p model.Parameter) ([]float64, error) {
	raw, err := c.store.ObservationValues(ctx, model.ObservationQuery{
		CohortID:     key.CohortID,
		AssessmentID: key.AssessmentID,
		ParameterID:  key.ParameterID,
		AgeGroup:     deref(key.AgeGroup),
		Gender:       deref(key.Gender),
	})
	if err != nil {
		return nil, fmt.Errorf("observations for %s: %w", key, err)
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := coerce.Numeric(p.Type, v); ok {
			out = append(out, f)
		}
	}
	if dropped := len(raw) - len(out); dropped > 0 {
		c.log.Debug(ctx, "unreadable values dropped",
			logger.String("parameter", p.ID), logger.Int("dropped", dropped))
	}
	return stats.Finite(out), nil
}

func (c *Calculator) summarise(key model.BenchmarkKey, p model.Parameter, values []float64, at time.Time) (model.Benchmark, error) {
	sum, err := stats.Compute(values)
	if err != nil {
		return model.Benchmark{}, fmt.Errorf("summarise %s: %w", key, err)
	}
	sum = sum.Rounded()
	return model.Benchmark{
		Key:           key,
		ParameterName: p.Name,
		Unit:          p.Unit,
		Count:         sum.Count,
		Min:           sum.Min,
		Max:           sum.Max,
		Mean:          sum.Mean,
		StdDev:        sum.StdDev,
		Percentiles:   stats.Percentiles(stats.Sorted(values), c.ranks),
		CalculatedAt:  at,
	}, nil
}

func stratum(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
