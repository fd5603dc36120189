package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// TableFormatter renders the run as a single table with a totals footer
type TableFormatter struct {
	writer    io.Writer
	showSteps bool
	colored   bool
}

type TableOption func(*TableFormatter)

func NewTableFormatter(opts ...TableOption) *TableFormatter {
	f := &TableFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TableWithWriter(w io.Writer) TableOption {
	return func(f *TableFormatter) {
		f.writer = w
	}
}

// TableWithSteps adds a row per step under every feature
func TableWithSteps(v bool) TableOption {
	return func(f *TableFormatter) {
		f.showSteps = v
	}
}

// TableWithColor picks a colored style keyed on the run status
func TableWithColor(v bool) TableOption {
	return func(f *TableFormatter) {
		f.colored = v
	}
}

func (f *TableFormatter) FormatResult(result *runner.Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetTitle(fmt.Sprintf("Suite Results (%s)", formatDuration(result.WallClock)))

	t.AppendHeader(table.Row{"Feature", "Tags", "Duration", "Steps", "Status", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Feature", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Steps", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, o := range result.Outcomes {
		msg := o.Error()
		if o.Status == runner.StatusSkipped {
			msg = o.SkipReason
		}
		t.AppendRow(table.Row{
			o.Key(),
			strings.Join(o.Tags, " "),
			formatDuration(o.Duration),
			len(o.Steps),
			statusString(o),
			msg,
		})

		if !f.showSteps {
			continue
		}
		for i, st := range o.Steps {
			prefix := "├─"
			if i == len(o.Steps)-1 {
				prefix = "└─"
			}
			var stepErr string
			if st.Err != nil {
				stepErr = st.Err.Error()
			}
			t.AppendRow(table.Row{
				fmt.Sprintf("  %s %s", prefix, st.Name),
				"",
				formatDuration(st.Duration),
				"",
				string(st.Status),
				stepErr,
			})
		}
	}

	switch {
	case !f.colored:
		t.SetStyle(table.StyleLight)
	case result.Failed > 0 || !result.Complete:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case result.Passed == 0 && result.Skipped > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("Total %d", result.Total),
		"",
		formatDuration(result.Duration),
		"",
		fmt.Sprintf("%d passed, %d failed, %d skipped", result.Passed, result.Failed, result.Skipped),
		completeString(result),
	})

	t.Render()
	return nil
}

func (f *TableFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "Error: %v\n", err)
}

func (f *TableFormatter) FormatHeader(version string) {
	fmt.Fprintf(f.writer, "suiterun %s\n", version)
}

func statusString(o *runner.Outcome) string {
	if o.Fatal {
		return "error"
	}
	return string(o.Status)
}

func completeString(r *runner.Result) string {
	if r.Complete {
		return ""
	}
	return "incomplete"
}
