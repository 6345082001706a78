// Package logging assembles structured slog loggers and formatting helpers used
// across moodsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so engine code can tag log lines
// with owner IDs, local IDs, and correlation IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail, plus log file
// retention pruning for the janitor.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
