package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// ConsoleFormatter prints one line per feature followed by a summary
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.Result) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := "Run " + result.RunID
	if result.Environment != "" {
		title += " (" + result.Environment + ")"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold(title))

	for _, o := range result.Outcomes {
		switch o.Status {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), o.Key())
			if o.SkipReason != "" {
				fmt.Fprintf(f.writer, " (%s)", o.SkipReason)
			}
			fmt.Fprintln(f.writer)
			continue
		case runner.StatusPassed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), o.Key(), cyan("("+formatDuration(o.Duration)+")"))
		default:
			symbol := red("✗")
			if o.Fatal {
				symbol = red("x")
			}
			fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, o.Key(), cyan("("+formatDuration(o.Duration)+")"))
			if msg := o.Error(); msg != "" {
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), truncate(msg, 300))
			}
		}

		if f.verbose {
			for _, st := range o.Steps {
				fmt.Fprintf(f.writer, "    %s %s %s\n", stepSymbol(st.Status), st.Name, cyan("("+formatDuration(st.Duration)+")"))
				if st.Err != nil {
					fmt.Fprintf(f.writer, "      %s\n", truncate(st.Err.Error(), 300))
				}
			}
		}
	}

	fmt.Fprintf(f.writer, "\nFeatures: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", result.Total)
	fmt.Fprintf(f.writer, "Time:     %s wall, %s summed over %d threads\n",
		formatDuration(result.WallClock), formatDuration(result.Duration), result.ThreadCount)
	if result.Passed+result.Failed > 0 {
		fmt.Fprintf(f.writer, "Latency:  p50 %s, p95 %s, p99 %s\n",
			formatDuration(result.P50), formatDuration(result.P95), formatDuration(result.P99))
	}
	if !result.Complete {
		fmt.Fprintf(f.writer, "%s\n", yellow("Run stopped before every feature finished"))
	}
	fmt.Fprintln(f.writer)
	return nil
}

func stepSymbol(s runner.Status) string {
	switch s {
	case runner.StatusPassed:
		return color.New(color.FgGreen).Sprint("✓")
	case runner.StatusSkipped:
		return color.New(color.FgYellow).Sprint("-")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("suiterun"), version)
}
