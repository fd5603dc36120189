package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

var (
	ErrNoExecutor = errors.New("no executor")
	ErrAlreadyRan = errors.New("suite already ran")
	errNoOutcome  = errors.New("executor returned no outcome")
)

const (
	skipReasonTags = "excluded by tag selector"
	skipReasonHook = "skipped by hook"
)

// Run executes every feature of the suite on Threads workers and returns the
// frozen result. Cancelling ctx behaves like Stop. A suite runs at most once.
func (s *Suite) Run(ctx context.Context, exec Executor) (*Result, error) {
	if exec == nil {
		return nil, ErrNoExecutor
	}
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRan
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// features that were admitted run to completion after a stop
	execCtx := context.WithoutCancel(ctx)

	s.results.markStarted()
	s.logger.Info("Starting suite",
		"features", len(s.features),
		"threads", s.threads,
		"env", s.environment,
		"tags", s.selector.String(),
	)

	s.callHooks(eventBeforeSuite, "", func(h Hook) error {
		return h.BeforeSuite(execCtx, s)
	})

	work := make(chan *feature.Feature)
	var g errgroup.Group

	g.Go(func() error {
		defer close(work)
		for _, f := range s.features {
			if s.halted(ctx) {
				return nil
			}
			if !s.selector.Matches(f.Tags) {
				s.recordSkip(f, skipReasonTags)
				continue
			}
			select {
			case work <- f:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < s.threads; i++ {
		g.Go(func() error {
			for f := range work {
				s.runFeature(ctx, execCtx, exec, f)
			}
			return nil
		})
	}
	_ = g.Wait()

	complete := s.results.Len() == len(s.features)
	result := s.results.Finalize(complete)

	s.callHooks(eventAfterSuite, "", func(h Hook) error {
		return h.AfterSuite(execCtx, s, result)
	})

	s.logger.Info("Suite finished",
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"complete", result.Complete,
		"elapsed", result.WallClock,
	)
	return result, nil
}

func (s *Suite) halted(ctx context.Context) bool {
	return s.Stopped() || ctx.Err() != nil
}

func (s *Suite) recordSkip(f *feature.Feature, reason string) {
	s.logger.Debug("Skipping feature", "feature", f.Key(), "reason", reason)
	s.results.Submit()
	s.results.Merge(&Outcome{
		Feature:    f.Name,
		Path:       f.Path,
		Tags:       f.Tags,
		Status:     StatusSkipped,
		Started:    time.Now(),
		SkipReason: reason,
	})
}

func (s *Suite) runFeature(ctx, execCtx context.Context, exec Executor, f *feature.Feature) {
	if s.halted(ctx) {
		return
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		s.logger.Debug("Feature not admitted", "feature", f.Key(), "err", err)
		return
	}
	defer s.limiter.Release()

	if s.halted(ctx) {
		return
	}

	key := f.Key()
	skip := s.callHooks(eventBeforeFeature, key, func(h Hook) error {
		return h.BeforeFeature(execCtx, s, f)
	})
	if skip {
		s.recordSkip(f, skipReasonHook)
		return
	}
	if s.halted(ctx) {
		return
	}

	s.results.Submit()
	outcome := s.execute(execCtx, exec, f)
	s.results.Merge(outcome)

	s.logger.Debug("Feature finished", "feature", key, "status", outcome.Status, "elapsed", outcome.Duration)
	if outcome.Status == StatusFailed {
		s.logger.Info("Feature failed", "feature", key, "fatal", outcome.Fatal, "err", outcome.Err)
	}

	s.callHooks(eventAfterFeature, key, func(h Hook) error {
		return h.AfterFeature(execCtx, s, f, outcome)
	})
}

// execute runs one feature and always returns an outcome. Executor errors and
// panics become fatal failures.
func (s *Suite) execute(ctx context.Context, exec Executor, f *feature.Feature) (outcome *Outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Feature executor panicked", "feature", f.Key(), "panic", r, "stack", string(debug.Stack()))
			outcome = fatalOutcome(f, start, fmt.Errorf("executor panic: %v", r))
		}
	}()

	o, err := exec.Execute(ctx, f, s)
	if err != nil {
		return fatalOutcome(f, start, err)
	}
	if o == nil {
		return fatalOutcome(f, start, errNoOutcome)
	}

	out := *o
	if out.Feature == "" {
		out.Feature = f.Name
	}
	if out.Path == "" {
		out.Path = f.Path
	}
	if out.Tags == nil {
		out.Tags = f.Tags
	}
	if out.Started.IsZero() {
		out.Started = start
	}
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	if out.Status == "" {
		out.Status = StatusPassed
		if out.Err != nil {
			out.Status = StatusFailed
		}
	}
	return &out
}

func fatalOutcome(f *feature.Feature, start time.Time, err error) *Outcome {
	return &Outcome{
		Feature:  f.Name,
		Path:     f.Path,
		Tags:     f.Tags,
		Status:   StatusFailed,
		Started:  start,
		Duration: time.Since(start),
		Err:      err,
		Fatal:    true,
	}
}
