package validator

import (
	"context"
	"errors"

	"github.com/yuya-takeyama/hardcopy/internal/worker"
)

// Concurrent fans file comparisons of one call out to a shared worker pool.
// The first failure cancels the rest of the batch; which failure is
// reported when several files fail at once is not deterministic.
type Concurrent struct {
	*engine
	pool *worker.Pool
}

func NewConcurrent(pool *worker.Pool, opts Options) (*Concurrent, error) {
	if pool == nil {
		return nil, errors.New("concurrent validator needs a worker pool")
	}
	e, err := newEngine(opts)
	if err != nil {
		return nil, err
	}
	return &Concurrent{engine: e, pool: pool}, nil
}

func (c *Concurrent) IsValidCopy(ctx context.Context, src string, candidates ...string) (Result, error) {
	return c.isValidCopy(ctx, c.run, src, candidates)
}

func (c *Concurrent) IsValidCopyTree(ctx context.Context, srcDir, copyDir string) (Result, error) {
	return c.isValidCopyTree(ctx, c.run, srcDir, copyDir)
}

type outcome struct {
	result  Result
	err     error
	skipped bool
}

type walkDone struct {
	total  int
	result *Result
	err    error
}

// run walks in a producer goroutine while this goroutine collects outcomes.
// Every accepted task reports exactly once, so the loop drains the batch
// even after cancellation and no worker is left blocked on a send.
func (c *Concurrent) run(ctx context.Context, produce producer) (Result, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan outcome)
	done := make(chan walkDone, 1)

	go func() {
		total := 0
		res, err := produce(batchCtx, func(j fileJob) error {
			err := c.pool.Submit(batchCtx, worker.Task{
				Run: func(taskCtx context.Context) {
					r, err := c.check(taskCtx, j)
					outcomes <- outcome{result: r, err: err}
				},
				Skip: func(error) {
					outcomes <- outcome{skipped: true}
				},
			})
			if err != nil {
				return err
			}
			total++
			return nil
		})
		done <- walkDone{total: total, result: res, err: err}
	}()

	walked := done

	var (
		first    *outcome
		received int
		total    = -1
	)
	record := func(o outcome) {
		if first == nil {
			first = &o
		}
		cancel()
	}

	for total < 0 || received < total {
		select {
		case o := <-outcomes:
			received++
			if o.err != nil || (!o.skipped && !o.result.Valid) {
				record(o)
			}
		case w := <-walked:
			walked = nil
			total = w.total
			if w.result != nil {
				record(outcome{result: *w.result})
			}
			if w.err != nil {
				record(outcome{err: w.err})
			}
		}
	}

	// Cancellation only happens after a failure was recorded, unless the
	// caller cancelled ctx.
	if first != nil {
		if first.err != nil {
			return Result{}, first.err
		}
		return first.result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return valid(), nil
}
