// Package cmd implements the suiterun CLI commands using Cobra.
//
// Available commands:
//   - run: Execute feature files concurrently and report the results
//   - list: Display the features a run would pick up
//   - validate: Check feature files and the project file without executing
//   - history: Show previously recorded runs
//   - init: Create a new suiterun project with example files
//   - exitcodes: Describe the process exit codes
//   - version: Show suiterun version information
//
// The run command supports tag selection, a concurrency ceiling, several
// output formats, notifications, run history, Prometheus metrics and watch
// mode for development workflows.
package cmd
