// Package workpool provides a small bounded worker pool for dispatching
// CPU-bound work (image decode/encode, PDF parsing)
// off the calling goroutine, mirroring the "never run blocking work
// inline" background-task discipline used throughout the indexing path.
package workpool

import (
	"context"
	"runtime"
)

// Pool runs submitted functions on a bounded number of worker goroutines.
type Pool struct {
	sem chan struct{}
}

// New creates a Pool with size workers. size <= 0 defaults to
// runtime.GOMAXPROCS(0).
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Run executes fn on a pool worker, blocking the caller until a slot is
// free, fn completes, or ctx is cancelled.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call is a convenience wrapper around Run for functions that return a
// value alongside an error.
func Call[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Run(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		result = v
		return err
	})
	return result, err
}
