package runner

import (
	"context"

	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

// Executor runs a single feature. It must be safe to call concurrently for
// different features of the same suite. A returned error means the execution
// machinery itself broke; test failures belong in the Outcome.
type Executor interface {
	Execute(ctx context.Context, f *feature.Feature, s *Suite) (*Outcome, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, f *feature.Feature, s *Suite) (*Outcome, error)

func (fn ExecutorFunc) Execute(ctx context.Context, f *feature.Feature, s *Suite) (*Outcome, error) {
	return fn(ctx, f, s)
}
