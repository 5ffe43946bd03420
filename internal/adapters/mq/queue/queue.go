// Package queue carries recalculation jobs from entry writes to the worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/metrics"
)

// DefaultCapacity bounds the pending recalculations when WithCapacity is not given.
const DefaultCapacity = 10_000

// Job is one pending (cohort, assessment, stratum) recalculation.
type Job = model.RecalcJob

// Queue is the hand-off between the service and the recalculation workers.
type Queue interface {
	// Enqueue never blocks: a full queue answers ErrFull, a closed one ErrClosed.
	Enqueue(ctx context.Context, j Job) error
	// Dequeue streams jobs until the queue is closed and drained or ctx ends.
	Dequeue(ctx context.Context) <-chan Job
	Len() int
	Cap() int
	// Close refuses new jobs; queued ones are still delivered.
	Close() error
	IsClosed() bool
}

// InMemoryQueue is a Queue over a buffered channel.
type InMemoryQueue struct {
	mu     sync.RWMutex
	closed bool
	size   int
	ch     chan Job
}

// NewInMemoryQueue returns an open queue holding at most DefaultCapacity jobs
// unless WithCapacity says otherwise.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{size: DefaultCapacity}
	for _, o := range opts {
		o(q)
	}
	q.ch = make(chan Job, q.size)
	metrics.UpdateQueueCapacity(q.size)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue stamps EnqueuedAt when the caller left it zero.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	switch {
	case q.closed:
		return reject("closed", ErrClosed)
	case ctx.Err() != nil:
		return reject("context_cancelled", ctx.Err())
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}
	select {
	case q.ch <- j:
	default:
		return reject("full", ErrFull)
	}
	metrics.RecordQueueEnqueue()
	metrics.UpdateQueueSize(len(q.ch))
	return nil
}

func reject(reason string, err error) error {
	metrics.RecordQueueRejected(reason)
	return err
}

// Dequeue starts a forwarding goroutine per call; several workers may share
// the queue by each calling Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go q.forward(ctx, out)
	return out
}

func (q *InMemoryQueue) forward(ctx context.Context, out chan<- Job) {
	defer close(out)
	for {
		var j Job
		select {
		case <-ctx.Done():
			return
		case next, ok := <-q.ch:
			if !ok {
				return
			}
			j = next
		}
		select {
		case <-ctx.Done():
			return
		case out <- j:
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueSize(len(q.ch))
		}
	}
}

func (q *InMemoryQueue) Len() int { return len(q.ch) }

func (q *InMemoryQueue) Cap() int { return q.size }

// Close is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
