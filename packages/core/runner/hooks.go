package runner

import (
	"context"
	"errors"

	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

var (
	// ErrStopRun returned from any hook method raises the stop signal
	ErrStopRun = errors.New("stop run requested")
	// ErrSkipFeature returned from BeforeFeature records the feature as skipped
	ErrSkipFeature = errors.New("skip feature")
)

// Hook observes a run. Methods are called from worker goroutines and must be
// safe for concurrent use. Errors other than ErrStopRun and ErrSkipFeature
// are logged and otherwise ignored.
type Hook interface {
	BeforeSuite(ctx context.Context, s *Suite) error
	BeforeFeature(ctx context.Context, s *Suite, f *feature.Feature) error
	AfterFeature(ctx context.Context, s *Suite, f *feature.Feature, o *Outcome) error
	AfterSuite(ctx context.Context, s *Suite, r *Result) error
}

// HookFuncs implements Hook with optional funcs
type HookFuncs struct {
	OnBeforeSuite   func(ctx context.Context, s *Suite) error
	OnBeforeFeature func(ctx context.Context, s *Suite, f *feature.Feature) error
	OnAfterFeature  func(ctx context.Context, s *Suite, f *feature.Feature, o *Outcome) error
	OnAfterSuite    func(ctx context.Context, s *Suite, r *Result) error
}

func (h HookFuncs) BeforeSuite(ctx context.Context, s *Suite) error {
	if h.OnBeforeSuite == nil {
		return nil
	}
	return h.OnBeforeSuite(ctx, s)
}

func (h HookFuncs) BeforeFeature(ctx context.Context, s *Suite, f *feature.Feature) error {
	if h.OnBeforeFeature == nil {
		return nil
	}
	return h.OnBeforeFeature(ctx, s, f)
}

func (h HookFuncs) AfterFeature(ctx context.Context, s *Suite, f *feature.Feature, o *Outcome) error {
	if h.OnAfterFeature == nil {
		return nil
	}
	return h.OnAfterFeature(ctx, s, f, o)
}

func (h HookFuncs) AfterSuite(ctx context.Context, s *Suite, r *Result) error {
	if h.OnAfterSuite == nil {
		return nil
	}
	return h.OnAfterSuite(ctx, s, r)
}

type hookEvent string

const (
	eventBeforeSuite   hookEvent = "before-suite"
	eventBeforeFeature hookEvent = "before-feature"
	eventAfterFeature  hookEvent = "after-feature"
	eventAfterSuite    hookEvent = "after-suite"
)

// callHooks invokes call on every hook in order and applies the hook error
// contract. It reports whether any hook asked to skip the feature.
func (s *Suite) callHooks(event hookEvent, key string, call func(Hook) error) (skip bool) {
	for _, h := range s.hooks {
		err := call(h)
		switch {
		case err == nil:
		case errors.Is(err, ErrStopRun):
			s.logger.Info("Hook requested stop", "event", event, "feature", key, "err", err)
			s.Stop()
		case errors.Is(err, ErrSkipFeature) && event == eventBeforeFeature:
			s.logger.Debug("Hook skipped feature", "feature", key, "err", err)
			skip = true
		default:
			s.logger.Warn("Hook failed", "event", event, "feature", key, "err", err)
		}
	}
	return skip
}
