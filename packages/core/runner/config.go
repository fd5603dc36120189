package runner

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/ethereum/go-ethereum/log"

	"github.com/abdul-hamid-achik/suiterun/packages/core/resource"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

const (
	DefaultBuildDir      = "target"
	DefaultReportDirName = "suite-reports"
)

// ErrInvalidRunConfig is returned by NewSuite for unusable parameters
var ErrInvalidRunConfig = errors.New("invalid run configuration")

// HookFactory builds a hook while the suite is being constructed
type HookFactory func() (Hook, error)

// Config carries the run parameters. Zero values get defaults when the suite
// is built; the Config itself is never modified.
type Config struct {
	Environment string
	Tags        []string
	WorkingDir  string
	BuildDir    string
	ReportDir   string
	ConfigDir   string
	Threads     int
	// StartRate limits feature starts per second, 0 is unlimited
	StartRate float64

	Locator          resource.Locator
	Hooks            []Hook
	HookFactories    []HookFactory
	ClientFactory    http.Factory
	SystemProperties map[string]string
	Logger           log.Logger

	// ForTempUse skips configuration loading for throwaway runs
	ForTempUse bool
	Features   []*feature.Feature
}

// resolve returns a copy with every deferred value computed
func (c *Config) resolve() (*Config, error) {
	if c == nil {
		c = &Config{}
	}
	r := *c

	switch {
	case r.Threads == 0:
		r.Threads = 1
	case r.Threads < 0:
		return nil, fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidRunConfig, r.Threads)
	}
	if r.StartRate < 0 {
		return nil, fmt.Errorf("%w: start rate must not be negative", ErrInvalidRunConfig)
	}

	if r.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		r.WorkingDir = wd
	}
	if r.BuildDir == "" {
		r.BuildDir = filepath.Join(r.WorkingDir, DefaultBuildDir)
	}
	if r.ReportDir == "" {
		r.ReportDir = filepath.Join(r.BuildDir, DefaultReportDirName)
	}

	if r.Logger == nil {
		r.Logger = log.Root()
	}
	if r.ClientFactory == nil {
		r.ClientFactory = http.DefaultFactory
	}
	if r.Locator == nil {
		r.Locator = resource.NewLocator(resource.WithWorkingDir(r.WorkingDir))
	}

	r.Tags = slices.Clone(c.Tags)
	r.Features = slices.Clone(c.Features)
	r.SystemProperties = maps.Clone(c.SystemProperties)
	if r.SystemProperties == nil {
		r.SystemProperties = map[string]string{}
	}

	r.Hooks = slices.Clone(c.Hooks)
	for i, factory := range c.HookFactories {
		if factory == nil {
			continue
		}
		h, err := factory()
		if err != nil {
			return nil, fmt.Errorf("creating hook %d: %w", i, err)
		}
		if h != nil {
			r.Hooks = append(r.Hooks, h)
		}
	}
	r.HookFactories = nil

	return &r, nil
}
