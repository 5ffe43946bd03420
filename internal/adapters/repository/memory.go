package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/metrics"
)

func defaultConfig(opts []Option) storeConfig {
	c := storeConfig{
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		maxRetryTime: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// MemoryStore is an in-memory Store guarded by a single RWMutex.
type MemoryStore struct {
	cfg storeConfig

	mu          sync.RWMutex
	cohorts     map[string]model.Cohort
	assessments map[string]model.Assessment
	entries     map[string]model.Entry
	entryOrder  []string
	benchmarks  map[string]model.Benchmark
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		cfg:         defaultConfig(opts),
		cohorts:     make(map[string]model.Cohort),
		assessments: make(map[string]model.Assessment),
		entries:     make(map[string]model.Entry),
		benchmarks:  make(map[string]model.Benchmark),
	}
}

// UpsertBenchmark implements BenchmarkStore.
func (s *MemoryStore) UpsertBenchmark(ctx context.Context, b model.Benchmark) (model.Benchmark, error) {
	if err := ctx.Err(); err != nil {
		return model.Benchmark{}, err
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("upsert_benchmark", msSince(start)) }()

	k := b.Key.String()
	now := s.cfg.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.benchmarks[k]; ok {
		b.ID = cur.ID
		b.CreatedAt = cur.CreatedAt
		if !now.After(cur.CreatedAt) {
			now = cur.CreatedAt.Add(time.Nanosecond)
		}
		b.UpdatedAt = now
	} else {
		b.ID = s.cfg.newID()
		b.CreatedAt = now
		b.UpdatedAt = now
		metrics.UpdateBenchmarksStored(len(s.benchmarks) + 1)
	}
	b.Percentiles = append([]model.PercentilePoint(nil), b.Percentiles...)
	s.benchmarks[k] = b
	return b, nil
}

// GetBenchmark implements BenchmarkStore.
func (s *MemoryStore) GetBenchmark(ctx context.Context, key model.BenchmarkKey) (model.Benchmark, error) {
	if err := ctx.Err(); err != nil {
		return model.Benchmark{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.benchmarks[key.String()]
	if !ok {
		return model.Benchmark{}, fmt.Errorf("benchmark %s: %w", key, ErrNotFound)
	}
	return b, nil
}

// ListBenchmarks implements BenchmarkStore.
func (s *MemoryStore) ListBenchmarks(ctx context.Context, f model.BenchmarkFilter) ([]model.Benchmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.benchmarks))
	for k, b := range s.benchmarks {
		if f.Matches(&b) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if f.Limit > 0 && len(keys) > f.Limit {
		keys = keys[:f.Limit]
	}
	out := make([]model.Benchmark, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.benchmarks[k])
	}
	s.mu.RUnlock()
	return out, nil
}

// DeleteBenchmarks implements BenchmarkStore.
func (s *MemoryStore) DeleteBenchmarks(ctx context.Context, f model.BenchmarkFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, b := range s.benchmarks {
		if f.Matches(&b) {
			delete(s.benchmarks, k)
			n++
		}
	}
	metrics.UpdateBenchmarksStored(len(s.benchmarks))
	return n, nil
}

// DeleteBenchmark implements BenchmarkStore.
func (s *MemoryStore) DeleteBenchmark(ctx context.Context, key model.BenchmarkKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if _, ok := s.benchmarks[k]; !ok {
		return false, nil
	}
	delete(s.benchmarks, k)
	metrics.UpdateBenchmarksStored(len(s.benchmarks))
	return true, nil
}

// SaveCohort implements CohortStore.
func (s *MemoryStore) SaveCohort(ctx context.Context, c model.Cohort) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("cohort without id: %w", ErrInvalidRecord)
	}
	s.mu.Lock()
	s.cohorts[c.ID] = c
	s.mu.Unlock()
	return nil
}

// GetCohort implements CohortStore.
func (s *MemoryStore) GetCohort(ctx context.Context, id string) (model.Cohort, error) {
	if err := ctx.Err(); err != nil {
		return model.Cohort{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cohorts[id]
	if !ok {
		return model.Cohort{}, fmt.Errorf("cohort %q: %w", id, ErrNotFound)
	}
	return c, nil
}

// SaveAssessment implements AssessmentStore.
func (s *MemoryStore) SaveAssessment(ctx context.Context, a model.Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ID == "" {
		return fmt.Errorf("assessment without id: %w", ErrInvalidRecord)
	}
	s.mu.Lock()
	s.assessments[a.ID] = a
	s.mu.Unlock()
	return nil
}

// GetAssessment implements AssessmentStore.
func (s *MemoryStore) GetAssessment(ctx context.Context, id string) (model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assessment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return model.Assessment{}, fmt.Errorf("assessment %q: %w", id, ErrNotFound)
	}
	return a, nil
}

// SaveEntry implements EntryStore.
func (s *MemoryStore) SaveEntry(ctx context.Context, e model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("entry without id: %w", ErrInvalidRecord)
	}
	e.Observations = append([]model.Observation(nil), e.Observations...)
	s.mu.Lock()
	if _, ok := s.entries[e.ID]; !ok {
		s.entryOrder = append(s.entryOrder, e.ID)
	}
	s.entries[e.ID] = e
	s.mu.Unlock()
	return nil
}

// GetEntry implements EntryStore.
func (s *MemoryStore) GetEntry(ctx context.Context, id string) (model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return model.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return model.Entry{}, fmt.Errorf("entry %q: %w", id, ErrNotFound)
	}
	e.Observations = append([]model.Observation(nil), e.Observations...)
	return e, nil
}

// AssessmentsWithEntries implements EntryStore.
func (s *MemoryStore) AssessmentsWithEntries(ctx context.Context, cohortID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		if e.CohortID == cohortID {
			seen[e.AssessmentID] = struct{}{}
		}
	}
	s.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// ObservationValues implements EntryStore.
func (s *MemoryStore) ObservationValues(ctx context.Context, q model.ObservationQuery) ([]model.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("observation_values", msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Value
	for _, id := range s.entryOrder {
		e := s.entries[id]
		if e.CohortID != q.CohortID || e.AssessmentID != q.AssessmentID {
			continue
		}
		if q.AgeGroup != "" && e.AgeGroup != q.AgeGroup {
			continue
		}
		if q.Gender != "" && e.Gender != q.Gender {
			continue
		}
		for _, o := range e.Observations {
			if o.ParameterID == q.ParameterID && !o.Value.IsNull() {
				out = append(out, o.Value)
			}
		}
	}
	return out, nil
}

// SaveScores implements EntryStore.
func (s *MemoryStore) SaveScores(ctx context.Context, entryID string, obs []model.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %q: %w", entryID, ErrNotFound)
	}
	if len(e.Observations) != len(obs) {
		return fmt.Errorf("entry %q: %w", entryID, ErrStale)
	}
	updated := append([]model.Observation(nil), e.Observations...)
	for i := range obs {
		if updated[i].ParameterID != obs[i].ParameterID || !updated[i].Value.Equal(obs[i].Value) {
			return fmt.Errorf("entry %q observation %d: %w", entryID, i, ErrStale)
		}
		updated[i].ZScore = obs[i].ZScore
		updated[i].Percentile = obs[i].Percentile
		updated[i].Band = obs[i].Band
		updated[i].PerformanceZ = obs[i].PerformanceZ
	}
	e.Observations = updated
	s.entries[entryID] = e
	return nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Cohorts:     len(s.cohorts),
		Assessments: len(s.assessments),
		Entries:     len(s.entries),
		Benchmarks:  len(s.benchmarks),
	}, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Nanoseconds()) / 1e6
}
