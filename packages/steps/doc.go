// Package steps is the bundled feature executor. It runs a feature's steps in
// order: shell commands, HTTP requests with gjson expectations and captures,
// and readiness polling. A step marked once runs a single time per suite and
// its captures are shared with every feature through the suite cache.
package steps
