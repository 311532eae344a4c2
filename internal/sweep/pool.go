package sweep

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// resolveWorkers maps the configured worker count onto a pool size; zero or
// negative means one worker per CPU.
func resolveWorkers(workers, tasks int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > tasks {
		workers = tasks
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// runIndexed executes task(i) for i in [0, n) on a bounded pool and waits for
// all of them. The returned slice holds each position's error; positions not
// dispatched because ctx ended carry ctx.Err().
func runIndexed(ctx context.Context, n, workers int, task func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	var g errgroup.Group
	g.SetLimit(resolveWorkers(workers, n))
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				errs[j] = err
			}
			break
		}
		g.Go(func() error {
			errs[i] = task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// firstError returns the error at the lowest position along with that position.
func firstError(errs []error) (int, error) {
	for i, err := range errs {
		if err != nil {
			return i, err
		}
	}
	return -1, nil
}
