package filter

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// EvaluatorOption configures an evaluator
type EvaluatorOption func(*Evaluator)

// WithWorkers sets the number of concurrent chunks
func WithWorkers(workers int) EvaluatorOption {
	return func(e *Evaluator) {
		if workers > 0 {
			e.workerCount = workers
		}
	}
}

// WithBatchSize sets the chunk size and the threshold for going concurrent
func WithBatchSize(size int) EvaluatorOption {
	return func(e *Evaluator) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// Evaluator applies compiled filters to item lists
type Evaluator struct {
	workerCount int
	batchSize   int
}

// NewEvaluator creates an evaluator sized to GOMAXPROCS
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   100,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Apply returns the items matching f, in their original order. Lists
// shorter than the batch size are evaluated inline.
func Apply[T any](ctx context.Context, e *Evaluator, f CompiledFilter, items []T, envFn EnvFunc[T]) ([]T, error) {
	if len(items) == 0 {
		return []T{}, nil
	}
	if e == nil {
		e = NewEvaluator()
	}

	if len(items) < e.batchSize {
		return applySequential(f, items, envFn), nil
	}

	return applyConcurrent(ctx, e, f, items, envFn)
}

func applySequential[T any](f CompiledFilter, items []T, envFn EnvFunc[T]) []T {
	matches := make([]T, 0, len(items)/2)
	for _, item := range items {
		if f.Evaluate(envFn(item)) {
			matches = append(matches, item)
		}
	}
	return matches
}

func applyConcurrent[T any](ctx context.Context, e *Evaluator, f CompiledFilter, items []T, envFn EnvFunc[T]) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount)

	// Each chunk writes only its own slot
	chunks := (len(items) + e.batchSize - 1) / e.batchSize
	results := make([][]T, chunks)

	for i := range chunks {
		start := i * e.batchSize
		end := min(start+e.batchSize, len(items))

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = applySequential(f, items[start:end], envFn)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	matches := make([]T, 0, total)
	for _, r := range results {
		matches = append(matches, r...)
	}
	return matches, nil
}
