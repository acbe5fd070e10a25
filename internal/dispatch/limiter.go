package dispatch

import "context"

// Limiter is a counting admission gate. Every per-chunk unit acquires a
// permit before its vendor call and releases it on completion, so at most
// Cap() calls are in flight regardless of how many units were launched.
type Limiter struct {
	sem chan struct{}
}

// NewLimiter creates a gate with max permits. max <= 0 falls back to
// DefaultMaxConcurrent.
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		max = DefaultMaxConcurrent
	}
	return &Limiter{sem: make(chan struct{}, max)}
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Releasing more than was acquired is a
// programming error and panics.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
	default:
		panic("dispatch: Release without matching Acquire")
	}
}

// InUse returns how many permits are currently held.
func (l *Limiter) InUse() int { return len(l.sem) }

// Cap returns the total permit count.
func (l *Limiter) Cap() int { return cap(l.sem) }
