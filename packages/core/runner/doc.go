// Package runner orchestrates a suite run.
//
// A Suite is built once from a Config and owns everything shared between
// concurrently running features: the resolved configuration fragments, the
// Limiter that bounds how many features execute at once, the Results
// aggregator and the run-wide Cache. Suite.Run hands every eligible feature to
// an Executor on a pool of Threads workers and returns the frozen Result.
//
// Hooks observe the run at four points (before and after the suite, before and
// after each feature). A hook returning ErrStopRun stops the run: features
// already executing finish, nothing new is admitted and the Result is marked
// incomplete.
package runner
