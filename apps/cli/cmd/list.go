package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/tags"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

var listTagsFlag []string

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List features and their steps",
	Long: `List the features defined in *.feature.yaml files, optionally filtered by tag.

Examples:
  suiterun list ./features
  suiterun list ./features -t "@smoke"`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringArrayVarP(&listTagsFlag, "tags", "t", nil, "Only list features matching this tag expression, repeatable")
}

func listCommand(cmd *cobra.Command, args []string) error {
	selector, err := tags.Parse(listTagsFlag...)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	files, err := feature.Collect(args...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no feature files (%s) found", strings.Join(feature.Extensions, ", "))
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		f, err := feature.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}
		if !selector.Matches(f.Tags) {
			continue
		}

		fmt.Fprintf(out, "\n%s: %s\n", file, f.Name)
		if len(f.Tags) > 0 {
			fmt.Fprintf(out, "  tags: %s\n", strings.Join(f.Tags, " "))
		}
		for i, step := range f.Steps {
			fmt.Fprintf(out, "  - %s (%s)\n", step.Label(i), step.Kind())
		}
	}

	return nil
}
