// Package janitor runs retention sweeps on a timer.
//
// A Janitor holds an advisory lock file so only one sweeper runs per store.
// Each sweep prunes expired idempotency records and then old log files
// under the configured log directory.
package janitor
