// Package http provides the HTTP clients handed to feature steps.
//
// A Factory builds a Client per feature so steps in different features never
// share cookies or default headers. DefaultFactory is used when a suite is
// configured without one.
package http
