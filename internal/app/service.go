// Package service wires the stores, the benchmark calculator and the
// recalculation workers into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/benchmarks/internal/adapters/mq/queue"
	workerpool "github.com/okian/benchmarks/internal/adapters/mq/worker"
	"github.com/okian/benchmarks/internal/adapters/repository"
	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/coerce"
	"github.com/okian/benchmarks/internal/domain/dedupe"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/internal/domain/stats"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 10_000
	defaultMaxLimit   = 500
	stopTimeout       = 30 * time.Second
)

// Service implements the API dependencies for the benchmarking system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	calc    *benchmark.Calculator
	coercer *coerce.Coercer
	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	autoRecalc  bool
	minSample   int
	ranks       []int
	maxLimit    int
	ageGroups   []model.AgeGroup

	now   func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service over store. Calculation and entry operations work
// immediately; background recalculation runs only between Start and Stop.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		autoRecalc:  true,
		minSample:   2,
		ranks:       stats.DefaultRanks,
		maxLimit:    defaultMaxLimit,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		logger:      logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")

	s.calc = benchmark.New(store, s.logger,
		benchmark.WithMinSampleSize(s.minSample),
		benchmark.WithPercentileRanks(s.ranks),
		benchmark.WithClock(s.now),
	)
	s.coercer = coerce.New(s.logger)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	return s
}

// Start launches the recalculation workers when auto recalculation is on.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.autoRecalc {
		if s.queue.IsClosed() {
			s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
		}
		s.pool = workerpool.NewPool(s.workerCount, s.queue, s.calc,
			workerpool.WithPoolLogger(s.logger),
			workerpool.WithPoolReleaser(s.deduper),
		)
		// Workers must outlive the caller's start-up context.
		s.pool.Start(context.WithoutCancel(ctx))
	}

	s.started = true
	s.logger.Info(ctx, "benchmark service started",
		logger.Bool("auto_recalculate", s.autoRecalc),
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
	)
	return nil
}

// Stop drains pending recalculations and stops the workers. The store is
// left open; its owner closes it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
		s.pool = nil
	}
	s.started = false
	s.logger.Info(ctx, "benchmark service stopped")
}

// recalcQueue returns the live queue, or nil when background recalculation
// is not running.
func (s *Service) recalcQueue() eventqueue.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.autoRecalc || !s.started {
		return nil
	}
	return s.queue
}

// checkCapacity rejects a write up front when its recalculation could not
// be queued.
func (s *Service) checkCapacity() error {
	q := s.recalcQueue()
	if q == nil {
		return nil
	}
	if q.Len() >= q.Cap() {
		metrics.RecordQueueRejected("backpressure")
		return ErrBusy
	}
	return nil
}

// scheduleRecalc queues a recalculation for the entry's scope unless an
// identical one is already pending.
func (s *Service) scheduleRecalc(ctx context.Context, e *model.Entry) {
	q := s.recalcQueue()
	if q == nil {
		return
	}
	job := model.RecalcJob{
		ID:           s.newID(),
		CohortID:     e.CohortID,
		AssessmentID: e.AssessmentID,
		AgeGroup:     e.AgeGroup,
		Gender:       e.Gender,
		EnqueuedAt:   s.now(),
	}
	key := job.Key()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordJobDeduplicated()
		return
	}
	if err := q.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "recalculation not queued",
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

// Stats is a point-in-time snapshot for monitoring.
type Stats struct {
	Started         bool              `json:"started"`
	AutoRecalculate bool              `json:"auto_recalculate"`
	WorkerCount     int               `json:"worker_count"`
	QueueLength     int               `json:"queue_length"`
	QueueCapacity   int               `json:"queue_capacity"`
	PendingRecalcs  int64             `json:"pending_recalculations"`
	Store           repository.Counts `json:"store"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	st := Stats{
		Started:         s.started,
		AutoRecalculate: s.autoRecalc,
		WorkerCount:     s.workerCount,
		QueueLength:     s.queue.Len(),
		QueueCapacity:   s.queue.Cap(),
		PendingRecalcs:  s.deduper.Size(),
	}
	s.mu.RUnlock()

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return st, err
	}
	st.Store = counts

	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateBenchmarksStored(counts.Benchmarks)
	return st, nil
}

// Ping reports whether the store answers.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.store.Counts(ctx); err != nil {
		return errors.Join(errors.New("store unavailable"), err)
	}
	return nil
}
