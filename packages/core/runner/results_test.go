package runner

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permutations(items []*Outcome) [][]*Outcome {
	if len(items) <= 1 {
		return [][]*Outcome{items}
	}
	var out [][]*Outcome
	for i := range items {
		rest := make([]*Outcome, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]*Outcome{items[i]}, p...))
		}
	}
	return out
}

// stable drops the wall clock fields that differ between aggregators
func stable(r *Result) *Result {
	r.StartedAt = time.Time{}
	r.EndedAt = time.Time{}
	r.WallClock = 0
	return r
}

func TestResults_MergeOrderIndependent(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	outcomes := []*Outcome{
		{Feature: "a", Status: StatusPassed, Duration: 10 * time.Millisecond, Started: started},
		{Feature: "b", Status: StatusFailed, Duration: 30 * time.Millisecond, Err: errors.New("expected 200"), Started: started},
		{Feature: "c", Status: StatusSkipped, SkipReason: "tags", Started: started},
		{Feature: "d", Status: StatusFailed, Duration: 5 * time.Millisecond, Fatal: true, Started: started},
	}

	var want *Result
	for i, perm := range permutations(outcomes) {
		r := NewResults("run", "qa", 2, "reports")
		for _, o := range perm {
			r.Submit()
			r.Merge(o)
		}
		got := stable(r.Finalize(true))
		if i == 0 {
			want = got
			continue
		}
		require.Equal(t, want, got, "permutation %d", i)
	}

	assert.Equal(t, 1, want.Passed)
	assert.Equal(t, 2, want.Failed)
	assert.Equal(t, 1, want.Skipped)
	assert.Equal(t, 1, want.Errors)
	assert.Equal(t, 4, want.Total)
	assert.Equal(t, 45*time.Millisecond, want.Duration)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{
		want.Outcomes[0].Key(), want.Outcomes[1].Key(), want.Outcomes[2].Key(), want.Outcomes[3].Key(),
	})
}

func TestResults_ConcurrentMerge(t *testing.T) {
	const n = 200
	r := NewResults("run", "", 8, "out")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := StatusPassed
			if i%4 == 0 {
				status = StatusFailed
			}
			r.Submit()
			r.Merge(&Outcome{Feature: fmt.Sprintf("f%03d", i), Status: status, Duration: time.Millisecond})
		}(i)
	}
	wg.Wait()

	res := r.Finalize(true)
	assert.Equal(t, n, res.Total)
	assert.Equal(t, n/4, res.Failed)
	assert.Equal(t, n-n/4, res.Passed)
	assert.Equal(t, time.Duration(n)*time.Millisecond, res.Duration)
	assert.Equal(t, 8, res.ThreadCount)
	assert.Equal(t, "out", res.ReportDir)
	assert.True(t, res.Complete)
}

func TestResults_Percentiles(t *testing.T) {
	r := NewResults("run", "", 1, "")
	for i := 1; i <= 100; i++ {
		r.Submit()
		r.Merge(&Outcome{Feature: fmt.Sprint(i), Status: StatusPassed, Duration: time.Duration(i) * time.Millisecond})
	}
	r.Submit()
	r.Merge(&Outcome{Feature: "skipped", Status: StatusSkipped})

	res := r.Snapshot()
	assert.InDelta(t, float64(50*time.Millisecond), float64(res.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(res.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(res.P99), float64(time.Millisecond))
}

func TestResults_SnapshotBeforeFinalize(t *testing.T) {
	r := NewResults("run", "dev", 3, "reports")
	r.Submit()
	r.Merge(&Outcome{Feature: "a", Status: StatusPassed})

	snap := r.Snapshot()
	assert.False(t, snap.Complete)
	assert.Zero(t, snap.ThreadCount)
	assert.Empty(t, snap.ReportDir)
	assert.Equal(t, "dev", snap.Environment)
	assert.Equal(t, 1, snap.Passed)

	final := r.Finalize(false)
	assert.False(t, final.Complete)
	assert.False(t, final.Success())
	assert.Equal(t, 3, final.ThreadCount)

	// frozen snapshots are copies
	again := r.Snapshot()
	again.Outcomes = nil
	assert.Len(t, r.Snapshot().Outcomes, 1)
}

func TestResults_ContractViolations(t *testing.T) {
	t.Run("merge without submit", func(t *testing.T) {
		r := NewResults("run", "", 1, "")
		assert.Panics(t, func() { r.Merge(&Outcome{Feature: "a", Status: StatusPassed}) })
	})

	t.Run("nil outcome", func(t *testing.T) {
		r := NewResults("run", "", 1, "")
		r.Submit()
		assert.Panics(t, func() { r.Merge(nil) })
	})

	t.Run("finalize with pending", func(t *testing.T) {
		r := NewResults("run", "", 1, "")
		r.Submit()
		assert.Panics(t, func() { r.Finalize(true) })
	})

	t.Run("finalize twice", func(t *testing.T) {
		r := NewResults("run", "", 1, "")
		r.Finalize(true)
		assert.Panics(t, func() { r.Finalize(true) })
	})

	t.Run("merge after finalize", func(t *testing.T) {
		r := NewResults("run", "", 1, "")
		r.Finalize(true)
		assert.Panics(t, func() { r.Submit() })
		assert.Panics(t, func() { r.Merge(&Outcome{Feature: "late", Status: StatusPassed}) })
	})
}

func TestResult_Success(t *testing.T) {
	assert.True(t, (&Result{Complete: true, Passed: 3}).Success())
	assert.False(t, (&Result{Complete: true, Failed: 1}).Success())
	assert.False(t, (&Result{Complete: false}).Success())
}
