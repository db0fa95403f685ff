// Package parallel replays independent scenarios concurrently. Each task owns
// its graph; graphs are never shared between workers.
package parallel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dd0wney/pvcgraph/pkg/logging"
)

// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
var ErrTooManyWorkers = fmt.Errorf("worker count exceeds maximum")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// Task is a unit of work. A panic inside a task is recovered and returned as
// its error.
type Task[R any] func(ctx context.Context) (R, error)

// Outcome pairs a task's result with its error
type Outcome[R any] struct {
	Value R
	Err   error
}

// WorkerPool runs tasks on a fixed number of goroutines
type WorkerPool[R any] struct {
	workers int
	queue   chan job[R]
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards queue against a send racing Close
	closed  bool
	logger  logging.Logger
}

type job[R any] struct {
	ctx  context.Context
	task Task[R]
	out  *Outcome[R]
	done func()
}

// NewWorkerPool starts workers goroutines. A non-positive count means one.
func NewWorkerPool[R any](workers int, logger logging.Logger) (*WorkerPool[R], error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	pool := &WorkerPool[R]{
		workers: workers,
		queue:   make(chan job[R], workers*2),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool, nil
}

func (wp *WorkerPool[R]) worker() {
	defer wp.wg.Done()
	for j := range wp.queue {
		*j.out = wp.run(j.ctx, j.task)
		j.done()
	}
}

func (wp *WorkerPool[R]) run(ctx context.Context, task Task[R]) (out Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("task panic recovered", logging.Any("panic", r))
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	out.Value, out.Err = task(ctx)
	return out
}

// submit queues a task whose outcome is written to out. It reports false once
// the pool is closed.
func (wp *WorkerPool[R]) submit(ctx context.Context, task Task[R], out *Outcome[R], done func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	wp.queue <- job[R]{ctx: ctx, task: task, out: out, done: done}
	return true
}

// Do runs every task and returns their outcomes in input order. It may be
// called repeatedly and from several goroutines until Close.
func (wp *WorkerPool[R]) Do(ctx context.Context, tasks ...Task[R]) []Outcome[R] {
	outcomes := make([]Outcome[R], len(tasks))
	var pending sync.WaitGroup
	for i, task := range tasks {
		pending.Add(1)
		if !wp.submit(ctx, task, &outcomes[i], pending.Done) {
			outcomes[i].Err = ErrPoolClosed
			pending.Done()
		}
	}
	pending.Wait()
	return outcomes
}

// ErrPoolClosed is the outcome of a task submitted after Close
var ErrPoolClosed = fmt.Errorf("worker pool closed")

// Close stops accepting tasks and waits for queued ones to finish
func (wp *WorkerPool[R]) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.queue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}
