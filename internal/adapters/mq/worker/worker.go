package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = model.RecalcJob

// Calculator recalculates benchmarks for one request.
type Calculator interface {
	Calculate(ctx context.Context, req benchmark.Request) (benchmark.Result, error)
}

// Releaser is told when a job's key stops being pending.
type Releaser interface {
	Unrecord(ctx context.Context, key string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

type nopReleaser struct{}

func (nopReleaser) Unrecord(context.Context, string) {}

// Worker processes recalculation jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	calc     Calculator
	releaser Releaser
	locks    *scopeLocks
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, calc Calculator, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		calc:     calc,
		releaser: nopReleaser{},
		locks:    newScopeLocks(),
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "recalculation failed",
					logger.String("job_id", job.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob recalculates every stratum the changed entry contributes to.
// The key is released before calculating so a write landing mid-run queues
// a fresh job instead of being collapsed into one that may miss it.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	unlock := w.locks.lock(job.CohortID + "|" + job.AssessmentID)
	defer unlock()

	start := time.Now()
	metrics.AddWorkerBusy(1)
	defer func() {
		metrics.AddWorkerBusy(-1)
		metrics.RecordJobLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.releaser.Unrecord(ctx, job.Key())

	var total benchmark.Result
	for _, req := range Requests(job) {
		res, err := w.calc.Calculate(ctx, req)
		switch {
		case err == nil:
			total.Created += res.Created
			total.Updated += res.Updated
			total.Removed += res.Removed
		case errors.Is(err, benchmark.ErrNoData):
			// A stratum with only null observations has nothing to refresh.
		default:
			metrics.RecordJobError()
			return fmt.Errorf("recalculate %s: %w", job.Key(), err)
		}
	}

	w.logger.Debug(ctx, "recalculated benchmarks",
		logger.String("cohort_id", job.CohortID),
		logger.String("assessment_id", job.AssessmentID),
		logger.Int("created", total.Created),
		logger.Int("updated", total.Updated),
		logger.Int("removed", total.Removed),
		logger.Duration("elapsed", time.Since(start)),
		logger.Duration("queued", start.Sub(job.EnqueuedAt)),
	)
	return nil
}

// Requests expands a job into the whole-cohort request plus one per stratum
// combination the entry belongs to.
func Requests(job Job) []benchmark.Request {
	base := benchmark.Request{CohortID: job.CohortID, AssessmentID: job.AssessmentID}
	reqs := []benchmark.Request{base}
	if job.AgeGroup != "" {
		r := base
		r.AgeGroup = job.AgeGroup
		reqs = append(reqs, r)
	}
	if job.Gender != "" {
		r := base
		r.Gender = job.Gender
		reqs = append(reqs, r)
	}
	if job.AgeGroup != "" && job.Gender != "" {
		r := base
		r.AgeGroup, r.Gender = job.AgeGroup, job.Gender
		reqs = append(reqs, r)
	}
	return reqs
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	releaser Releaser
	locks    *scopeLocks
	logger   logger.Logger
}

// NewPool creates a new worker pool. A non-positive count means one worker
// per CPU.
func NewPool(workerCount int, queue Queue, calc Calculator, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		releaser: nopReleaser{},
		locks:    newScopeLocks(),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, calc,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
			WithReleaser(p.releaser),
		)
		p.workers[i].locks = p.locks
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
