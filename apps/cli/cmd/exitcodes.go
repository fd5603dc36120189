package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// Exit codes for suiterun CLI
const (
	// ExitSuccess indicates every feature passed or was skipped
	ExitSuccess = 0

	// ExitTestFailure indicates one or more features failed
	ExitTestFailure = 1

	// ExitFatalError indicates a feature could not be executed at all
	ExitFatalError = 2

	// ExitConfigError indicates a configuration or feature file error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitInterrupted indicates the run was stopped before every feature finished
	ExitInterrupted = 130
)

var exitCodeDescriptions = []struct {
	code int
	desc string
}{
	{ExitSuccess, "every selected feature passed"},
	{ExitTestFailure, "one or more features failed"},
	{ExitFatalError, "one or more features crashed their executor"},
	{ExitConfigError, "invalid project file, feature file or run parameters"},
	{ExitUsageError, "invalid command line usage"},
	{ExitInterrupted, "the run was stopped before every feature finished"},
}

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to a process exit code
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

// resultExitCode picks the exit code of a finished run. An incomplete run
// wins over crashes, crashes win over failures.
func resultExitCode(r *runner.Result) int {
	switch {
	case !r.Complete:
		return ExitInterrupted
	case r.Errors > 0:
		return ExitFatalError
	case r.Failed > 0:
		return ExitTestFailure
	default:
		return ExitSuccess
	}
}

var exitcodesCmd = &cobra.Command{
	Use:   "exitcodes",
	Short: "Describe the exit codes of suiterun run",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, ec := range exitCodeDescriptions {
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", ec.code, ec.desc)
		}
	},
}
