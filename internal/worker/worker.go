// Package worker provides a long-lived, bounded pool of goroutines shared by
// every concurrent validation in the process.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of work handed to a pool worker.
type Task struct {
	// Run executes the task with the context it was submitted with.
	Run func(ctx context.Context)
	// Skip, if set, is called instead of Run when the context was already
	// done by the time a worker picked the task up.
	Skip func(err error)
}

type job struct {
	ctx  context.Context
	task Task
}

// Stats tracks pool activity
type Stats struct {
	Submitted int64
	Completed int64
	Skipped   int64
}

// Pool manages a fixed set of workers.
type Pool struct {
	size int
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	submitted atomic.Int64
	completed atomic.Int64
	skipped   atomic.Int64
}

// DefaultSize returns min(32, NumCPU+4).
func DefaultSize() int {
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	return n
}

// NewPool starts size workers. A size <= 0 uses DefaultSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}

	p := &Pool{
		size: size,
		jobs: make(chan job),
		quit: make(chan struct{}),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit hands task to a worker. It blocks until a worker accepts it, ctx is
// done, or the pool is closed. Once Submit returns nil, exactly one of Run or
// Skip will be called.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job{ctx: ctx, task: task}:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// Close stops the workers after their current tasks finish. It is safe to
// call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Skipped:   p.skipped.Load(),
	}
}

// worker processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				p.skipped.Add(1)
				if j.task.Skip != nil {
					j.task.Skip(err)
				}
				continue
			}
			j.task.Run(j.ctx)
			p.completed.Add(1)
		}
	}
}
