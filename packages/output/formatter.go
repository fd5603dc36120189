package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

const (
	FormatConsole = "console"
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatJUnit   = "junit"
	FormatTAP     = "tap"
)

// Formats lists the accepted format names
var Formats = []string{FormatConsole, FormatTable, FormatJSON, FormatJUnit, FormatTAP}

// Formatter writes a finalized run result
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.Result) error
	FormatError(err error)
}

// Options are shared by every formatter
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New returns the formatter registered under format
func New(format string, opts Options) (Formatter, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch format {
	case "", FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)), nil
	case FormatTable:
		return NewTableFormatter(TableWithWriter(w), TableWithSteps(opts.Verbose), TableWithColor(!opts.NoColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case FormatJUnit:
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case FormatTAP:
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
