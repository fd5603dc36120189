package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackMax records the highest value n has reached
func trackMax(maxSeen *atomic.Int64, n int64) {
	for {
		m := maxSeen.Load()
		if n <= m || maxSeen.CompareAndSwap(m, n) {
			return
		}
	}
}

func TestLimiter_NeverExceedsCapacity(t *testing.T) {
	const capacity, workers = 3, 20
	l := NewLimiter(capacity, 0)

	var current, maxSeen atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func() error {
				trackMax(&maxSeen, current.Add(1))
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
	assert.LessOrEqual(t, l.Peak(), capacity)
	assert.GreaterOrEqual(t, l.Peak(), 1)
	assert.Equal(t, 0, l.InUse())
	assert.Equal(t, workers, l.Acquisitions())
	assert.Equal(t, capacity, l.Capacity())
}

func TestLimiter_DoReleasesOnEveryPath(t *testing.T) {
	l := NewLimiter(1, 0)
	ctx := context.Background()

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(ctx, func() error { return boom }), boom)
	assert.Equal(t, 0, l.InUse())

	assert.Panics(t, func() {
		_ = l.Do(ctx, func() error { panic("boom") })
	})
	assert.Equal(t, 0, l.InUse())

	require.NoError(t, l.Acquire(ctx))
	l.Release()
}

func TestLimiter_AcquireBlocksUntilRelease(t *testing.T) {
	l := NewLimiter(1, 0)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, l.InUse())

	acquired := make(chan struct{})
	go func() {
		assert.NoError(t, l.Acquire(context.Background()))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquired while the only slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	l.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not admitted after release")
	}
	l.Release()
}

func TestLimiter_CancelledContextNeverAcquires(t *testing.T) {
	l := NewLimiter(2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
	assert.Equal(t, 0, l.InUse())
	assert.Equal(t, 0, l.Acquisitions())
}

func TestLimiter_ReleaseWithoutAcquirePanics(t *testing.T) {
	l := NewLimiter(2, 0)
	assert.Panics(t, func() { l.Release() })
	assert.Equal(t, 0, l.InUse())
}

func TestLimiter_InvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { NewLimiter(0, 0) })
}

func TestLimiter_StartRate(t *testing.T) {
	l := NewLimiter(5, 20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
		l.Release()
	}
	// burst of one: the second and third admissions wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
