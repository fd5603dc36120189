package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/http"
)

// runHTTP sends the request and checks status and body expectations.
// Expect and Capture keys are gjson paths into the JSON body.
func (e *Executor) runHTTP(ctx context.Context, run *featureRun, step *feature.HTTPStep) (*stepResult, error) {
	method := strings.ToUpper(strings.TrimSpace(step.Method))
	if method == "" {
		method = "GET"
	}

	req := http.NewRequest(method, run.resolver.Resolve(step.URL))
	for k, v := range run.resolver.ResolveAll(step.Headers) {
		req.SetHeader(k, v)
	}
	if step.Body != "" {
		req.SetBody(run.resolver.Resolve(step.Body))
	}

	resp, err := run.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	run.logger.Trace("HTTP step response", "method", method, "url", req.URL, "status", resp.StatusCode, "elapsed", resp.Duration)

	res := &stepResult{output: fmt.Sprintf("%s %s -> %d", method, req.URL, resp.StatusCode)}

	if step.Status != 0 {
		if resp.StatusCode != step.Status {
			return res, fmt.Errorf("expected status %d, got %d", step.Status, resp.StatusCode)
		}
	} else if !resp.IsSuccess() {
		return res, fmt.Errorf("expected a 2xx status, got %d", resp.StatusCode)
	}

	for _, path := range sortedKeys(step.Expect) {
		want := run.resolver.Resolve(step.Expect[path])
		got := resp.JSON(path)
		if !got.Exists() {
			return res, fmt.Errorf("expected %s to be %q, but it is missing", path, want)
		}
		if got.String() != want {
			return res, fmt.Errorf("expected %s to be %q, got %q", path, want, got.String())
		}
	}

	if len(step.Capture) > 0 {
		res.captures = make(map[string]string, len(step.Capture))
		for _, name := range sortedKeys(step.Capture) {
			path := step.Capture[name]
			v := resp.JSON(path)
			if !v.Exists() {
				return res, fmt.Errorf("capture %s: %s not found in response", name, path)
			}
			res.captures[name] = v.String()
		}
	}

	return res, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
