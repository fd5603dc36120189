package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/suiterun/packages/core/config"
	"github.com/abdul-hamid-achik/suiterun/packages/history"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new suiterun project",
	Long: `Initialize a new suiterun project in the current directory.

This creates:
  - suiterun.yaml                    - Project file
  - conf/suite-config.js             - Main configuration fragment
  - features/example.feature.yaml    - Example feature

Examples:
  suiterun init
  suiterun init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleFragment = `function fn() {
  return {
    baseUrl: 'http://localhost:3000'
  };
}
`

const exampleFeature = `name: Health check
description: The API answers before anything else runs
tags: ["@smoke"]
steps:
  - name: wait for the API
    wait:
      url: "{{baseUrl}}/health"
      status: 200
      timeout: 30000
  - name: read the version
    http:
      method: GET
      url: "{{baseUrl}}/version"
      status: 200
      capture:
        version: version
  - name: print it
    run: echo "API version {{version}}"
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	fragmentFile := filepath.Join(cwd, "conf", config.MainFragmentFile)
	exampleFile := filepath.Join(cwd, "features", "example.feature.yaml")

	if !forceInit {
		for _, f := range []string{configFile, fragmentFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Environment = "dev"
	cfg.ConfigDir = "conf"
	cfg.Properties = map[string]string{"baseUrl": "http://localhost:3000"}
	cfg.HistoryDB = history.DefaultPath
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	for path, content := range map[string]string{
		fragmentFile: exampleFragment,
		exampleFile:  exampleFeature,
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nsuiterun project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'suiterun run features' to execute the example feature.\n")

	return nil
}
