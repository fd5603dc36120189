package steps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/suiterun/packages/core/env"
)

// runShell executes a command through the shell in the feature's directory.
// A leading "-" makes a non-zero exit pass.
func (e *Executor) runShell(ctx context.Context, run *featureRun, command string) (*stepResult, error) {
	cmdStr := strings.TrimSpace(run.resolver.Resolve(command))
	if cmdStr == "" {
		return &stepResult{}, nil
	}

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}

	dir := run.feature.Dir()
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(run.suite.WorkingDir(), dir)
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", cmdStr)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	for k, v := range run.suite.SystemProperties() {
		cmd.Env = append(cmd.Env, propertyEnvName(k)+"="+v)
	}

	output, err := cmd.CombinedOutput()
	res := &stepResult{output: strings.TrimSpace(string(output))}
	run.logger.Trace("Shell command finished", "command", cmdStr, "output", res.output, "err", err)

	if err != nil && !ignoreError {
		return res, fmt.Errorf("command %q failed: %v\nOutput: %s", cmdStr, err, res.output)
	}
	return res, nil
}

// propertyEnvName maps a property like base.url to SUITERUN_PROP_base_url
func propertyEnvName(key string) string {
	return env.PropertyEnvPrefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, key)
}
