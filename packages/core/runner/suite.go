package runner

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/suiterun/packages/core/config"
	"github.com/abdul-hamid-achik/suiterun/packages/core/resource"
	"github.com/abdul-hamid-achik/suiterun/packages/core/tags"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

// Suite is the context of one run. Everything except the Results, the Cache
// and the stop signal is read-only after NewSuite returns.
type Suite struct {
	runID       string
	environment string
	selector    tags.Selector
	workingDir  string
	buildDir    string
	reportDir   string
	threads     int

	locator       resource.Locator
	hooks         []Hook
	clientFactory http.Factory
	properties    map[string]string
	fragments     *config.Fragments
	features      []*feature.Feature
	logger        log.Logger

	limiter *Limiter
	results *Results
	cache   *Cache

	stopOnce sync.Once
	stopCh   chan struct{}
	ran      atomic.Bool
}

// NewSuite resolves cfg and builds the run context
func NewSuite(cfg *Config) (*Suite, error) {
	resolved, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	selector, err := tags.Parse(resolved.Tags...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRunConfig, err)
	}

	runID := uuid.NewString()
	logger := resolved.Logger.New("run", runID[:8])

	s := &Suite{
		runID:         runID,
		environment:   resolved.Environment,
		selector:      selector,
		workingDir:    resolved.WorkingDir,
		buildDir:      resolved.BuildDir,
		reportDir:     resolved.ReportDir,
		threads:       resolved.Threads,
		locator:       resolved.Locator,
		hooks:         resolved.Hooks,
		clientFactory: resolved.ClientFactory,
		properties:    resolved.SystemProperties,
		features:      resolved.Features,
		logger:        logger,
		limiter:       NewLimiter(resolved.Threads, resolved.StartRate),
		results:       NewResults(runID, resolved.Environment, resolved.Threads, resolved.ReportDir),
		cache:         NewCache(),
		stopCh:        make(chan struct{}),
	}

	if resolved.ForTempUse {
		s.fragments = &config.Fragments{}
	} else {
		s.fragments = config.ResolveFragments(resolved.Locator, logger.New("component", "config"), config.FragmentOptions{
			ConfigDir:        resolved.ConfigDir,
			Environment:      resolved.Environment,
			SystemProperties: resolved.SystemProperties,
		})
	}

	return s, nil
}

// NewTempSuite builds a throwaway suite that loads no configuration
func NewTempSuite(features ...*feature.Feature) (*Suite, error) {
	return NewSuite(&Config{
		ForTempUse: true,
		Features:   features,
		Logger:     log.NewLogger(log.DiscardHandler()),
	})
}

func (s *Suite) RunID() string { return s.runID }
func (s *Suite) Environment() string { return s.environment }
func (s *Suite) Selector() tags.Selector { return s.selector }
func (s *Suite) WorkingDir() string { return s.workingDir }
func (s *Suite) BuildDir() string { return s.buildDir }
func (s *Suite) ReportDir() string { return s.reportDir }
func (s *Suite) Threads() int { return s.threads }
func (s *Suite) Locator() resource.Locator { return s.locator }
func (s *Suite) ClientFactory() http.Factory { return s.clientFactory }
func (s *Suite) Fragments() *config.Fragments { return s.fragments }
func (s *Suite) Limiter() *Limiter { return s.limiter }
func (s *Suite) Results() *Results { return s.results }
func (s *Suite) Cache() *Cache { return s.cache }
func (s *Suite) Logger() log.Logger { return s.logger }
func (s *Suite) Hooks() []Hook { return slices.Clone(s.hooks) }
func (s *Suite) Features() []*feature.Feature { return slices.Clone(s.features) }
func (s *Suite) SystemProperties() map[string]string { return maps.Clone(s.properties) }

// Property returns one system property
func (s *Suite) Property(key string) (string, bool) {
	v, ok := s.properties[key]
	return v, ok
}

// Stop raises the stop signal. Running features finish, nothing new starts.
func (s *Suite) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Stopped reports whether the stop signal was raised
func (s *Suite) Stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
