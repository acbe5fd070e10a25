package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterNeverExceedsCap(t *testing.T) {
	const capacity, workers = 3, 10

	l := NewLimiter(capacity)
	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer l.Release()

			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > capacity {
		t.Errorf("peak concurrent holders = %d, want <= %d", got, capacity)
	}
	if l.InUse() != 0 {
		t.Errorf("InUse() = %d after all released, want 0", l.InUse())
	}
}

func TestLimiterBlocksWhenFull(t *testing.T) {
	l := NewLimiter(2)
	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("Acquire() on full gate = %v, want DeadlineExceeded", err)
	}

	l.Release()
	if err := l.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() after Release() error = %v", err)
	}
}

func TestLimiterAcquireCanceled(t *testing.T) {
	l := NewLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Acquire() = %v, want context.Canceled", err)
	}
}

func TestLimiterAccessors(t *testing.T) {
	l := NewLimiter(3)
	if l.Cap() != 3 {
		t.Errorf("Cap() = %d, want 3", l.Cap())
	}
	if l.InUse() != 0 {
		t.Errorf("InUse() = %d, want 0", l.InUse())
	}

	_ = l.Acquire(context.Background())
	if l.InUse() != 1 {
		t.Errorf("InUse() = %d after one acquire, want 1", l.InUse())
	}
	l.Release()
}

func TestLimiterDefaultCap(t *testing.T) {
	l := NewLimiter(0)
	if l.Cap() != DefaultMaxConcurrent {
		t.Errorf("Cap() = %d, want default %d", l.Cap(), DefaultMaxConcurrent)
	}
}

func TestLimiterReleaseWithoutAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Release() without Acquire() should panic")
		}
	}()
	NewLimiter(1).Release()
}
