// Package parallel provides the batch worker fan-out used to run several
// independent MCCFR tables concurrently within a single training iteration.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one worker's unit of batch work. workerID is stable across a call
// to Run (0..n-1) so a caller can use it to seed a per-worker RNG or pick a
// pre-allocated result slot deterministically.
type Task func(ctx context.Context, workerID int) error

// Run launches n independent tasks and waits for all of them to finish
// with errgroup.WithContext: the first task to return an error cancels ctx for
// the rest, and Run returns that error once every goroutine has exited.
// Each task owns its own state; Run never shares mutable data between
// workers itself, so the caller's tasks are the only thing responsible for
// keeping worker state independent.
func Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return task(ctx, 0)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		workerID := i
		g.Go(func() error {
			return task(gctx, workerID)
		})
	}
	return g.Wait()
}
