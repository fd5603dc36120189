package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/abdul-hamid-achik/suiterun/packages/core/env"
	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

const onceKeyPrefix = "once:"

// Executor implements runner.Executor for YAML features
type Executor struct {
	shell      string
	stepLimit  time.Duration
	waitPeriod time.Duration
}

type Option func(*Executor)

// WithShell sets the shell used by run steps
func WithShell(shell string) Option {
	return func(e *Executor) {
		e.shell = shell
	}
}

// WithStepTimeout bounds every run and http step, 0 means no bound
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.stepLimit = d
	}
}

// WithWaitInterval sets the default polling interval of wait steps
func WithWaitInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.waitPeriod = d
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		shell:      "sh",
		waitPeriod: DefaultWaitInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// featureRun is the per-feature state shared by its steps
type featureRun struct {
	feature  *feature.Feature
	suite    *runner.Suite
	resolver *env.Resolver
	client   *http.Client
	logger   log.Logger
}

// stepResult is what a single step produced
type stepResult struct {
	captures map[string]string
	output   string
}

func (e *Executor) Execute(ctx context.Context, f *feature.Feature, s *runner.Suite) (*runner.Outcome, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	logger := s.Logger().New("feature", f.Key())
	resolver := env.NewResolver()
	resolver.SetStrings(s.SystemProperties())
	resolver.SetLogger(logger)

	run := &featureRun{
		feature:  f,
		suite:    s,
		resolver: resolver,
		client:   s.ClientFactory().NewClient(),
		logger:   logger,
	}

	outcome := &runner.Outcome{
		Feature: f.Name,
		Path:    f.Path,
		Tags:    f.Tags,
		Status:  runner.StatusPassed,
		Started: time.Now(),
	}

	for i, step := range f.Steps {
		label := step.Label(i)
		if outcome.Status == runner.StatusFailed {
			outcome.Steps = append(outcome.Steps, runner.StepOutcome{Name: label, Status: runner.StatusSkipped})
			continue
		}

		start := time.Now()
		res, err := e.runStep(ctx, run, step)
		so := runner.StepOutcome{
			Name:     label,
			Status:   runner.StatusPassed,
			Duration: time.Since(start),
			Err:      err,
		}
		if res != nil {
			so.Output = res.output
			for name, value := range res.captures {
				resolver.SetCapture(step.Name, name, value)
			}
		}
		if err != nil {
			so.Status = runner.StatusFailed
			outcome.Status = runner.StatusFailed
			outcome.Err = fmt.Errorf("%s: %w", label, err)
			logger.Debug("Step failed", "step", label, "err", err)
		} else {
			logger.Trace("Step passed", "step", label, "elapsed", so.Duration)
		}
		outcome.Steps = append(outcome.Steps, so)
	}

	outcome.Duration = time.Since(outcome.Started)
	return outcome, nil
}

func (e *Executor) runStep(ctx context.Context, run *featureRun, step *feature.Step) (*stepResult, error) {
	if step.Once == "" {
		return e.dispatch(ctx, run, step)
	}

	key := onceKeyPrefix + run.resolver.Resolve(step.Once)
	captures, err := runner.CacheValue(run.suite.Cache(), key, func() (map[string]string, error) {
		run.logger.Debug("Running once step", "key", key)
		res, err := e.dispatch(ctx, run, step)
		if err != nil {
			return nil, err
		}
		return res.captures, nil
	})
	if err != nil {
		return nil, err
	}
	return &stepResult{captures: captures}, nil
}

func (e *Executor) dispatch(ctx context.Context, run *featureRun, step *feature.Step) (*stepResult, error) {
	if e.stepLimit > 0 && step.Wait == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepLimit)
		defer cancel()
	}

	switch step.Kind() {
	case feature.StepRun:
		return e.runShell(ctx, run, step.Run)
	case feature.StepHTTP:
		return e.runHTTP(ctx, run, step.HTTP)
	case feature.StepWait:
		return e.runWait(ctx, run, step.Wait)
	}
	return nil, fmt.Errorf("step has no action")
}
