package inference

import (
	"context"
	"time"
)

// limiter bounds in-flight calls and applies the per-provider timeout.
type limiter struct {
	workerPool chan struct{}
	timeout    time.Duration
}

func newLimiter(maxConcurrent int, timeout time.Duration) *limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &limiter{
		workerPool: make(chan struct{}, maxConcurrent),
		timeout:    timeout,
	}
}

// acquire blocks for a slot and returns the call context and a release func.
func (l *limiter) acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case l.workerPool <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}

	return callCtx, func() {
		cancel()
		<-l.workerPool
	}, nil
}
