// Package output renders a finished run.
//
// Supported output formats:
//   - console: human-readable colored terminal output
//   - table: a go-pretty summary table
//   - json: machine-readable report, also written as results.json
//   - junit: JUnit XML for CI integration
//   - tap: Test Anything Protocol
//
// Every formatter implements Formatter. New selects one by name.
package output
