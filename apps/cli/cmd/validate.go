package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/config"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate feature files and the project file",
	Long: `Validate feature files and the project file without executing anything.

The project file is the one given with --config, or the first of
suiterun.yaml, suiterun.yml, .suiterun.yaml and suiterun.json in the
current directory.

Examples:
  suiterun validate ./features
  suiterun validate ./features --config ci/suiterun.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

var validateConfigFlag string

func init() {
	validateCmd.Flags().StringVar(&validateConfigFlag, "config", "", "Path to project file")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	hasErrors := false

	if path := projectFile(validateConfigFlag); path != "" {
		if _, err := config.LoadConfig(path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %v\n", err)
			hasErrors = true
		} else {
			fmt.Fprintf(out, "Valid: %s\n", path)
		}
	}

	files, err := feature.Collect(args...)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitConfigError, fmt.Errorf("no feature files (%s) found", strings.Join(feature.Extensions, ", ")))
	}

	for _, file := range files {
		if _, err := feature.Load(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(out, "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExitCode(ExitConfigError, fmt.Errorf("validation failed"))
	}
	return nil
}

// projectFile returns explicit, or the project file found in the current directory
func projectFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range config.ConfigFilenames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
