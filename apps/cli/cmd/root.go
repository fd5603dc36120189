package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag int // 0=info, 1=-v debug, 2=-vv trace
	quietFlag   bool
	logJSONFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "suiterun",
	Short: "Run feature suites concurrently against any environment.",
	Long: `suiterun executes YAML feature files on a bounded pool of workers,
selects them with tag expressions, layers configuration per environment
and reports one aggregate result.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose logging (-v debug, -vv trace)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("SUITERUN_QUIET", false), "Only log errors (env: SUITERUN_QUIET)")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", getEnvBool("SUITERUN_LOG_JSON", false), "Write logs as JSON lines (env: SUITERUN_LOG_JSON)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("SUITERUN_NO_COLOR", false), "Disable colored output (env: SUITERUN_NO_COLOR)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(exitcodesCmd)
}

// setupLogging installs the root logger for the chosen verbosity and format
func setupLogging(cmd *cobra.Command, _ []string) error {
	useColor := !noColorFlag && !color.NoColor
	if noColorFlag {
		color.NoColor = true
	}
	level := logging.LevelForVerbosity(verboseFlag, quietFlag)
	log.SetDefault(logging.New(cmd.ErrOrStderr(), level, logJSONFlag, useColor))
	return nil
}
