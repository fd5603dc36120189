package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// TAPFormatter formats the run in TAP (Test Anything Protocol) version 13
type TAPFormatter struct {
	writer io.Writer
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.Result) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(result.Outcomes))

	for i, o := range result.Outcomes {
		n := i + 1
		switch {
		case o.Status == runner.StatusSkipped:
			reason := o.SkipReason
			if reason == "" {
				reason = "skipped"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", n, o.Key(), reason)
		case o.Status == runner.StatusPassed:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, o.Key())
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, o.Key())
			fmt.Fprintf(f.writer, "  ---\n")
			if msg := o.Error(); msg != "" {
				fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(msg))
			}
			severity := "fail"
			if o.Fatal {
				severity = "error"
			}
			fmt.Fprintf(f.writer, "  severity: %s\n", severity)
			fmt.Fprintf(f.writer, "  duration_ms: %d\n", o.Duration.Milliseconds())
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	if !result.Complete {
		fmt.Fprintf(f.writer, "Bail out! run stopped before every feature finished\n")
	}
	return nil
}

func (f *TAPFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "Bail out! %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
}

func (f *TAPFormatter) FormatHeader(version string) {
	// The version line is written with the result
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
