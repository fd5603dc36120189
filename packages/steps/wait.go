package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

const (
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond
	waitRequestTimeout  = 5 * time.Second
)

// runWait polls a URL until it returns the expected status or times out
func (e *Executor) runWait(ctx context.Context, run *featureRun, step *feature.WaitStep) (*stepResult, error) {
	url := run.resolver.Resolve(step.URL)
	expectedStatus := step.Status
	if expectedStatus == 0 {
		expectedStatus = 200
	}
	timeout := DefaultWaitTimeout
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout) * time.Millisecond
	}
	interval := e.waitPeriod
	if step.Interval > 0 {
		interval = time.Duration(step.Interval) * time.Millisecond
	}

	run.logger.Debug("Waiting for service", "url", url, "status", expectedStatus, "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	var lastStatus int
	attempts := 0

	for {
		attempts++
		resp, err := run.client.Do(ctx, http.NewRequest("GET", url).SetTimeout(waitRequestTimeout))
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == expectedStatus {
				return &stepResult{output: fmt.Sprintf("%s ready after %d attempts", url, attempts)}, nil
			}
		}

		select {
		case <-ctx.Done():
			if lastStatus != 0 {
				return nil, fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
					url, timeout, lastStatus, expectedStatus)
			}
			return nil, fmt.Errorf("service %s not ready after %v: %v", url, timeout, lastErr)
		case <-time.After(interval):
		}
	}
}
