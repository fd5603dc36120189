// Package env resolves {{variable}} placeholders in feature steps and loads
// run properties from .env files, -D flags and prefixed process variables.
package env
