package app

import (
	"context"
	"sync"
)

// PartialResult holds a result or an error for partial success patterns.
type PartialResult[T any] struct {
	Value T
	Err   error
}

// ParallelPartial executes functions and collects all results, even on
// partial failure. It does not cancel remaining work on first error; every
// function runs to completion.
//
// Example:
//
//	results := ParallelPartial(ctx, fetchFuncs...)
//	for _, r := range results {
//	    if r.Err != nil { ... }
//	}
func ParallelPartial[T any](
	ctx context.Context,
	fns ...func(context.Context) (T, error),
) []PartialResult[T] {
	results := make([]PartialResult[T], len(fns))

	var wg sync.WaitGroup

	for i, fn := range fns {
		wg.Go(func() {
			value, err := fn(ctx)
			results[i] = PartialResult[T]{Value: value, Err: err}
		})
	}

	wg.Wait()

	return results
}

// ParallelPartialLimit executes functions with bounded concurrency,
// collecting all results. At most 'limit' functions run simultaneously.
func ParallelPartialLimit[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) []PartialResult[T] {
	results := make([]PartialResult[T], len(fns))
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup

	for i, fn := range fns {
		wg.Go(func() {
			sem <- struct{}{}

			defer func() { <-sem }()

			value, err := fn(ctx)
			results[i] = PartialResult[T]{Value: value, Err: err}
		})
	}

	wg.Wait()

	return results
}
