// Package history keeps finalized runs in a SQLite database.
//
// The store records one row per run and one row per feature outcome. It backs
// the history command and seeds recovery detection for notifications.
package history
