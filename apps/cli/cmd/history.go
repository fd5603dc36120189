package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/history"
)

var (
	historyDBPathFlag string
	historyLimitFlag  int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs",
	Long: `Show the runs recorded with --history-db, newest first.
With a run id, show the features of that run.

Examples:
  suiterun history
  suiterun history --limit 5
  suiterun history 3f0c1c8e-8a55-4c1f-9d0b-6f1f5b0f2a11`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPathFlag, "history-db", getEnvString("SUITERUN_HISTORY_DB", history.DefaultPath), "SQLite file holding the history (env: SUITERUN_HISTORY_DB)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of runs to show, 0 shows all")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(historyDBPathFlag); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("no history at %s: %w", historyDBPathFlag, err))
	}

	store, err := history.Open(historyDBPathFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	if len(args) == 1 {
		features, err := store.Features(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(features) == 0 {
			return fmt.Errorf("run %s not found", args[0])
		}

		t.SetTitle("Run " + args[0])
		t.AppendHeader(table.Row{"Feature", "Path", "Status", "Duration", "Error"})
		for _, f := range features {
			status := string(f.Status)
			if f.Fatal {
				status = "error"
			}
			detail := f.Error
			if f.Status == runner.StatusSkipped {
				detail = f.SkipReason
			}
			t.AppendRow(table.Row{f.Name, f.Path, status, f.Duration.Round(time.Millisecond), detail})
		}
		t.Render()
		return nil
	}

	runs, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return history.ErrNoRuns
	}

	t.AppendHeader(table.Row{"Run", "Env", "Started", "Passed", "Failed", "Skipped", "Wall", "P95", "Result"})
	for _, r := range runs {
		result := "pass"
		switch {
		case !r.Complete:
			result = "stopped"
		case !r.Success():
			result = "fail"
		}
		t.AppendRow(table.Row{
			r.ID, r.Environment, r.StartedAt.Local().Format(time.DateTime),
			r.Passed, r.Failed, r.Skipped,
			r.WallClock.Round(time.Millisecond), r.P95.Round(time.Millisecond), result,
		})
	}
	t.Render()
	return nil
}
