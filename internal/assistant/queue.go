package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/pkg/log"
	"github.com/sandevgo/tutorbot/pkg/retry"
)

type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	priorityLevels = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

type queueItem struct {
	ctx        context.Context
	op         retry.Operation
	label      string
	enqueuedAt time.Time
	result     chan error
}

// EnqueueOptions selects the priority lane and a diagnostic label for an
// operation.
type EnqueueOptions struct {
	Priority Priority
	Label    string
}

// RequestQueue is the single chokepoint for completion-service calls.
// Items are dequeued strictly by priority, FIFO within a lane, and a
// weighted semaphore caps how many operations are in flight at once.
// Failed operations are retried per the queue's backoff policy when the
// error classifies as transient; everything else surfaces immediately.
type RequestQueue struct {
	mu     sync.Mutex
	lanes  [priorityLevels][]*queueItem
	signal chan struct{}

	sem    *semaphore.Weighted
	policy *retry.Policy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRequestQueue(maxConcurrent int64, policy *retry.Policy) *RequestQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if policy == nil {
		policy = retry.NewDefaultPolicy()
	}
	return &RequestQueue{
		signal: make(chan struct{}, 1),
		sem:    semaphore.NewWeighted(maxConcurrent),
		policy: policy,
	}
}

// Start launches the dispatcher. Must be called before Enqueue.
func (q *RequestQueue) Start(ctx context.Context) error {
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.wg.Add(1)
	go q.dispatch(ctx)
	return nil
}

// ErrQueueStopped is returned for operations still waiting in a lane
// when the queue shuts down.
var ErrQueueStopped = errors.New("request queue stopped")

// Shutdown stops the dispatcher, fails operations still waiting in the
// lanes and waits for in-flight ones.
func (q *RequestQueue) Shutdown(ctx context.Context) error {
	if q.cancel != nil {
		q.cancel()
	}
	for {
		item, ok := q.pop()
		if !ok {
			break
		}
		item.result <- ErrQueueStopped
	}
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules op and blocks until it completes, exhausts its retry
// budget, or fails permanently. The last error is always surfaced; the
// queue never silently drops a failed operation.
func (q *RequestQueue) Enqueue(ctx context.Context, op retry.Operation, opts EnqueueOptions) error {
	if q.ctx == nil {
		return errors.New("request queue is not started")
	}
	if q.ctx.Err() != nil {
		return ErrQueueStopped
	}

	item := &queueItem{
		ctx:        ctx,
		op:         op,
		label:      opts.Label,
		enqueuedAt: time.Now(),
		result:     make(chan error, 1),
	}

	priority := opts.Priority
	if priority < PriorityHigh || priority > PriorityLow {
		priority = PriorityNormal
	}

	q.mu.Lock()
	q.lanes[priority] = append(q.lanes[priority], item)
	q.mu.Unlock()
	q.wake()

	select {
	case err := <-item.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *RequestQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *RequestQueue) dispatch(ctx context.Context) {
	defer q.wg.Done()

	for {
		// Admission control: a free slot is acquired before anything
		// leaves a lane, so priority is decided when capacity frees up.
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			return
		}

		item, ok := q.pop()
		for !ok {
			select {
			case <-q.signal:
				item, ok = q.pop()
			case <-q.ctx.Done():
				q.sem.Release(1)
				return
			}
		}

		q.wg.Add(1)
		go q.run(ctx, item)
	}
}

// pop removes the oldest item from the highest non-empty priority lane.
func (q *RequestQueue) pop() (*queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for level := range q.lanes {
		if len(q.lanes[level]) == 0 {
			continue
		}
		item := q.lanes[level][0]
		q.lanes[level] = q.lanes[level][1:]
		return item, true
	}
	return nil, false
}

func (q *RequestQueue) run(ctx context.Context, item *queueItem) {
	defer q.wg.Done()
	defer q.sem.Release(1)

	logger := log.FromCtx(ctx)
	waited := time.Since(item.enqueuedAt)

	err := q.policy.Do(item.ctx, item.op, isRetryableError)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("label", item.label).
			Dur("queued", waited).
			Msg("queued operation failed")
	} else {
		logger.Debug().
			Str("label", item.label).
			Dur("queued", waited).
			Msg("queued operation completed")
	}

	item.result <- err
}

// isRetryableError admits network-class failures and the retryable
// HTTP-equivalent status classes for another attempt.
func isRetryableError(err error) bool {
	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Retryable || core.RetryableStatus(svcErr.Status)
	}
	return retry.IsNetworkError(err)
}
