// Package sampler is an in-process sampling CPU profiler for goroutines.
//
// A session is started with Start (or StartProfiling on the default
// registry) and ended by closing the returned Guard. While the session is
// active a timer goroutine, pinned to its own OS thread, wakes at the
// requested frequency, captures the stack of every other goroutine and
// folds it into a deduplicated, weighted aggregation keyed by the stack and
// a "Thread:<id>" label. Guard.Report snapshots the aggregation into a
// report.Builder that renders folded stacks, pprof or JSON.
//
// Only one session runs per registry at a time; a second Start fails with
// ErrAlreadyRunning.
package sampler
