package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"drummond-lab/internal/domain"
)

// ErrNoWorkers is returned when the pool is constructed with a
// non-positive worker count.
var ErrNoWorkers = errors.New("batch: worker count must be positive")

// Task is one unit of backtest work, usually a (strategy config, symbol set)
// pair bound into the Run closure.
type Task struct {
	ID  string
	Run func(ctx context.Context) (*domain.BacktestResult, error)
}

// Result is the outcome of one task. Err is set on failure, including
// panics recovered at the worker boundary.
type Result struct {
	TaskID string
	Result *domain.BacktestResult
	Err    error
}

// Summary aggregates a finished batch.
type Summary struct {
	Results   []*Result
	Succeeded int
	Failed    int
}

// Pool runs backtest tasks across a fixed number of workers.
type Pool struct {
	workers int
	log     zerolog.Logger
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int, log zerolog.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, ErrNoWorkers
	}
	return &Pool{
		workers: workers,
		log:     log.With().Str("component", "batch").Logger(),
	}, nil
}

// Run executes all tasks and returns their results in input order.
// A cancelled context fails the remaining tasks with ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []*Task) *Summary {
	results := make([]*Result, len(tasks))

	type job struct {
		idx  int
		task *Task
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = p.runOne(ctx, j.task)
			}
		}()
	}

	for i, t := range tasks {
		jobs <- job{idx: i, task: t}
	}
	close(jobs)
	wg.Wait()

	summary := &Summary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	p.log.Info().
		Int("tasks", len(tasks)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("batch finished")

	return summary
}

// runOne executes a single task, converting panics into failed results
// so one bad strategy cannot take down the whole sweep.
func (p *Pool) runOne(ctx context.Context, t *Task) (res *Result) {
	res = &Result{TaskID: t.ID}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", t.ID, r)
			p.log.Error().Str("task", t.ID).Msgf("recovered panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	out, err := t.Run(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = out
	return res
}
