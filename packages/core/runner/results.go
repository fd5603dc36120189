package runner

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// histogram bounds in microseconds: 1us to 1h
const maxRecordableUs = int64(time.Hour / time.Microsecond)

// StepOutcome is the result of one step inside a feature
type StepOutcome struct {
	Name     string
	Status   Status
	Duration time.Duration
	Output   string
	Err      error
}

// Outcome is the result of one feature. It is read-only once merged.
type Outcome struct {
	Feature    string
	Path       string
	Tags       []string
	Status     Status
	Started    time.Time
	Duration   time.Duration
	Err        error
	Fatal      bool
	SkipReason string
	Steps      []StepOutcome
}

// Key identifies the outcome's feature
func (o *Outcome) Key() string {
	if o.Path != "" {
		return o.Path
	}
	return o.Feature
}

// Error returns the failure message, if any
func (o *Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Result is the aggregate of a run
type Result struct {
	RunID       string
	Environment string

	Passed  int
	Failed  int
	Skipped int
	// Errors counts failed outcomes whose executor crashed
	Errors int
	Total  int

	// Duration is the sum of feature durations, WallClock the elapsed run time
	Duration  time.Duration
	WallClock time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration

	ThreadCount int
	ReportDir   string
	Complete    bool
	StartedAt   time.Time
	EndedAt     time.Time

	Outcomes []*Outcome
}

// Success reports whether the run finished with no failures
func (r *Result) Success() bool {
	return r.Complete && r.Failed == 0
}

// Results aggregates outcomes from concurrently running features.
// Merge order never affects a snapshot.
type Results struct {
	mu sync.Mutex

	runID       string
	environment string
	threads     int
	reportDir   string
	startedAt   time.Time

	pending  int
	outcomes []*Outcome
	passed   int
	failed   int
	skipped  int
	errors   int
	duration time.Duration
	hist     *hdrhistogram.Histogram

	final *Result
}

func NewResults(runID, environment string, threads int, reportDir string) *Results {
	return &Results{
		runID:       runID,
		environment: environment,
		threads:     threads,
		reportDir:   reportDir,
		startedAt:   time.Now(),
		hist:        hdrhistogram.New(1, maxRecordableUs, 3),
	}
}

func (r *Results) markStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = time.Now()
}

// Submit registers a feature whose outcome will be merged later
func (r *Results) Submit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final != nil {
		panic("runner: submit after results were finalized")
	}
	r.pending++
}

// Merge adds one outcome. Every Merge must be preceded by a Submit.
func (r *Results) Merge(o *Outcome) {
	if o == nil {
		panic("runner: merge of nil outcome")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.final != nil {
		panic(fmt.Sprintf("runner: merge of %q after results were finalized", o.Key()))
	}
	if r.pending == 0 {
		panic(fmt.Sprintf("runner: merge of %q without a pending submit", o.Key()))
	}
	r.pending--

	r.outcomes = append(r.outcomes, o)
	switch o.Status {
	case StatusPassed:
		r.passed++
	case StatusSkipped:
		r.skipped++
	default:
		r.failed++
		if o.Fatal {
			r.errors++
		}
	}

	if o.Status != StatusSkipped {
		r.duration += o.Duration
		us := o.Duration.Microseconds()
		us = max(1, min(us, maxRecordableUs))
		_ = r.hist.RecordValue(us)
	}
}

// Len is the number of merged outcomes
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// Snapshot returns the current aggregate. After Finalize it returns a copy
// of the frozen result.
func (r *Results) Snapshot() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final != nil {
		return r.final.clone()
	}
	return r.snapshotLocked(time.Now())
}

func (r *Results) snapshotLocked(now time.Time) *Result {
	outcomes := slices.Clone(r.outcomes)
	slices.SortFunc(outcomes, compareOutcomes)

	res := &Result{
		RunID:       r.runID,
		Environment: r.environment,
		Passed:      r.passed,
		Failed:      r.failed,
		Skipped:     r.skipped,
		Errors:      r.errors,
		Total:       len(outcomes),
		Duration:    r.duration,
		WallClock:   now.Sub(r.startedAt),
		StartedAt:   r.startedAt,
		Outcomes:    outcomes,
	}
	if r.hist.TotalCount() > 0 {
		res.P50 = time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond
		res.P95 = time.Duration(r.hist.ValueAtQuantile(95)) * time.Microsecond
		res.P99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	return res
}

// Finalize freezes the aggregate and attaches run metadata. It must be called
// once, after every submitted feature has been merged.
func (r *Results) Finalize(complete bool) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.final != nil {
		panic("runner: results finalized twice")
	}
	if r.pending != 0 {
		panic(fmt.Sprintf("runner: finalize with %d outcomes still pending", r.pending))
	}

	now := time.Now()
	res := r.snapshotLocked(now)
	res.EndedAt = now
	res.Complete = complete
	res.ThreadCount = r.threads
	res.ReportDir = r.reportDir
	r.final = res
	return res.clone()
}

func (r *Result) clone() *Result {
	c := *r
	c.Outcomes = slices.Clone(r.Outcomes)
	return &c
}

func compareOutcomes(a, b *Outcome) int {
	if c := strings.Compare(a.Key(), b.Key()); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Status), string(b.Status)); c != 0 {
		return c
	}
	if a.Duration != b.Duration {
		if a.Duration < b.Duration {
			return -1
		}
		return 1
	}
	return a.Started.Compare(b.Started)
}
