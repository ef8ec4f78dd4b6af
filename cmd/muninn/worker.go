package main

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn once per item, either sequentially or, when parallel
// is set, across a bounded pool of goroutines, following the original
// implementation's Processor.process (a sequential loop, or a
// multiprocessing.Pool of --processes workers under --parallel).
// Individual item failures are logged by fn and do not abort the others;
// forEach itself only ever returns an error from ctx cancellation or a
// programmer error inside fn that chooses to propagate one.
func forEach[T any](ctx context.Context, items []T, parallel bool, processes int, fn func(context.Context, T) error) error {
	if !parallel || len(items) <= 1 {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	if processes <= 0 {
		processes = runtime.NumCPU()
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(processes)
	for _, item := range items {
		item := item
		group.Go(func() error {
			return fn(gctx, item)
		})
	}
	return group.Wait()
}
