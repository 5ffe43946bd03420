// Package repository stores templates, cohorts, entries and the benchmarks
// derived from them. Benchmarks are kept at most once per key.
package repository

import (
	"context"

	"github.com/okian/benchmarks/internal/domain/model"
)

// BenchmarkStore holds derived benchmark records.
type BenchmarkStore interface {
	// UpsertBenchmark writes b under b.Key, replacing any record with the same
	// key. The returned record carries the stored ID and timestamps: CreatedAt
	// equals UpdatedAt only when the call created the record.
	UpsertBenchmark(ctx context.Context, b model.Benchmark) (model.Benchmark, error)

	// GetBenchmark returns the record for key or ErrNotFound.
	GetBenchmark(ctx context.Context, key model.BenchmarkKey) (model.Benchmark, error)

	// ListBenchmarks returns matching records ordered by key.
	ListBenchmarks(ctx context.Context, f model.BenchmarkFilter) ([]model.Benchmark, error)

	// DeleteBenchmarks removes matching records and reports how many went.
	DeleteBenchmarks(ctx context.Context, f model.BenchmarkFilter) (int, error)

	// DeleteBenchmark removes the record stored under exactly key and reports
	// whether one existed.
	DeleteBenchmark(ctx context.Context, key model.BenchmarkKey) (bool, error)
}

// CohortStore is the cohort lookup used for existence checks.
type CohortStore interface {
	SaveCohort(ctx context.Context, c model.Cohort) error
	GetCohort(ctx context.Context, id string) (model.Cohort, error)
}

// AssessmentStore holds assessment templates.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, a model.Assessment) error
	GetAssessment(ctx context.Context, id string) (model.Assessment, error)
}

// EntryStore holds submitted entries and their observations.
type EntryStore interface {
	// SaveEntry inserts e or replaces the entry with the same ID.
	SaveEntry(ctx context.Context, e model.Entry) error
	GetEntry(ctx context.Context, id string) (model.Entry, error)

	// AssessmentsWithEntries lists assessment ids with at least one entry in
	// the cohort, sorted.
	AssessmentsWithEntries(ctx context.Context, cohortID string) ([]string, error)

	// ObservationValues returns the non-null coerced values matching q in
	// submission order.
	ObservationValues(ctx context.Context, q model.ObservationQuery) ([]model.Value, error)

	// SaveScores writes the normalization fields of obs back onto the entry.
	// obs must be the entry's observation list as read; ErrStale is returned
	// when it no longer lines up with the stored one.
	SaveScores(ctx context.Context, entryID string, obs []model.Observation) error
}

// Counts summarises store contents.
type Counts struct {
	Cohorts     int `json:"cohorts"`
	Assessments int `json:"assessments"`
	Entries     int `json:"entries"`
	Benchmarks  int `json:"benchmarks"`
}

// Store is the full persistence surface used by the service.
type Store interface {
	BenchmarkStore
	CohortStore
	AssessmentStore
	EntryStore

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
