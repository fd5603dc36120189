// Package config handles configuration loading for suiterun.
//
// It provides functionality for:
//   - Loading the project file (suiterun.yaml) with defaults and layered merging
//   - Validating project files against an embedded JSON schema
//   - Resolving the optional base, main and environment config fragments
package config
