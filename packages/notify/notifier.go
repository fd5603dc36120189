// Package notify sends run summaries to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run succeeds
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first success after one
	NotifyRecovery NotifyOn = "recovery"
)

// maxFailedListed bounds the failed features carried in a summary
const maxFailedListed = 10

// ParseNotifyOn validates a policy name. Empty means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q", s)
	}
}

// RunSummary is the notification payload for one run
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Environment   string        `json:"environment,omitempty"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	Duration      time.Duration `json:"duration"`
	Complete      bool          `json:"complete"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// Success reports whether the run completed without failures
func (s *RunSummary) Success() bool {
	return s.Complete && s.FailedTests == 0
}

// FailedTest represents a failed feature
type FailedTest struct {
	Name  string `json:"name"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewRunSummary condenses a finalized result
func NewRunSummary(result *runner.Result) *RunSummary {
	summary := &RunSummary{
		RunID:        result.RunID,
		Environment:  result.Environment,
		TotalTests:   result.Total,
		PassedTests:  result.Passed,
		FailedTests:  result.Failed,
		SkippedTests: result.Skipped,
		Duration:     result.WallClock,
		Complete:     result.Complete,
	}
	for _, o := range result.Outcomes {
		if o.Status != runner.StatusFailed {
			continue
		}
		if len(summary.FailedResults) == maxFailedListed {
			break
		}
		summary.FailedResults = append(summary.FailedResults, FailedTest{
			Name:  o.Feature,
			File:  o.Path,
			Error: o.Error(),
		})
	}
	return summary
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager applies a policy and fans a summary out to its notifiers
type Manager struct {
	mu        sync.Mutex
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
	logger    log.Logger
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, logger log.Logger, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
		logger:    logger.New("component", "notify"),
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// SetLastState seeds the outcome of the previous run, for recovery detection
func (m *Manager) SetLastState(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastState = success
}

// ShouldNotify applies the policy to summary and records its state.
// It marks the summary as a recovery when appropriate.
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentSuccess := summary.Success()
	var shouldNotify bool

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess
	return shouldNotify
}

// Notify sends notifications based on the configured policy. Every notifier
// is tried; the errors are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	if !m.ShouldNotify(summary) {
		m.logger.Debug("Notification suppressed by policy", "policy", m.notifyOn)
		return nil
	}

	m.mu.Lock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	var errs []error
	for _, n := range notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.logger.Info("Sent notification", "notifier", n.Name(), "recovery", summary.IsRecovery)
	}
	return errors.Join(errs...)
}

// Hook returns a suite hook that notifies once the run is finalized
func (m *Manager) Hook() runner.Hook {
	return runner.HookFuncs{
		OnAfterSuite: func(ctx context.Context, _ *runner.Suite, r *runner.Result) error {
			return m.Notify(ctx, NewRunSummary(r))
		},
	}
}
