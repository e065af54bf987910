package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunExecutesEveryWorker(t *testing.T) {
	var count atomic.Int64
	seen := make([]int32, 5)

	err := Run(context.Background(), 5, func(_ context.Context, workerID int) error {
		count.Add(1)
		atomic.AddInt32(&seen[workerID], 1)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count.Load() != 5 {
		t.Fatalf("expected 5 tasks to run, got %d", count.Load())
	}
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("worker %d ran %d times, want 1", i, v)
		}
	}
}

func TestRunPropagatesFirstError(t *testing.T) {
	failure := errors.New("boom")
	err := Run(context.Background(), 4, func(_ context.Context, workerID int) error {
		if workerID == 2 {
			return failure
		}
		return nil
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestRunZeroWorkersIsNoop(t *testing.T) {
	if err := Run(context.Background(), 0, func(context.Context, int) error {
		t.Fatalf("task should not run")
		return nil
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunCancelsContextOnError(t *testing.T) {
	failure := errors.New("boom")
	var canceled atomic.Bool

	err := Run(context.Background(), 3, func(ctx context.Context, workerID int) error {
		if workerID == 0 {
			return failure
		}
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected boom error, got %v", err)
	}
	if !canceled.Load() {
		t.Fatalf("expected surviving workers to observe context cancellation")
	}
}
