package runner

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter is the admission gate for feature execution. At most Capacity
// holders exist at any instant.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	pace     *rate.Limiter

	inUse    atomic.Int64
	peak     atomic.Int64
	acquired atomic.Int64
}

// NewLimiter returns a limiter with the given capacity. A positive startRate
// additionally paces admissions to that many per second.
func NewLimiter(capacity int, startRate float64) *Limiter {
	if capacity < 1 {
		panic(fmt.Sprintf("runner: limiter capacity must be at least 1, got %d", capacity))
	}
	l := &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
	if startRate > 0 {
		l.pace = rate.NewLimiter(rate.Limit(startRate), 1)
	}
	return l
}

// Acquire blocks until a slot is free. It only fails when ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	// semaphore.Acquire may succeed on a done context when a slot is free
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.pace != nil {
		if err := l.pace.Wait(ctx); err != nil {
			return err
		}
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	n := l.inUse.Add(1)
	if n > l.capacity {
		panic(fmt.Sprintf("runner: limiter admitted %d holders with capacity %d", n, l.capacity))
	}
	l.acquired.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns a slot. Releasing a slot that is not held panics.
func (l *Limiter) Release() {
	if n := l.inUse.Add(-1); n < 0 {
		l.inUse.Add(1)
		panic("runner: limiter slot released without being held")
	}
	l.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released on every exit path.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

func (l *Limiter) Capacity() int { return int(l.capacity) }

// InUse is the number of slots currently held
func (l *Limiter) InUse() int { return int(l.inUse.Load()) }

// Peak is the highest InUse observed
func (l *Limiter) Peak() int { return int(l.peak.Load()) }

// Acquisitions counts successful Acquire calls
func (l *Limiter) Acquisitions() int { return int(l.acquired.Load()) }
