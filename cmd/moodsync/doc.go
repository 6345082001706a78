// Package main hosts the moodsync CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the idempotency engine directly against
// the configured store: duplicate checks, lifecycle marks reported by a sync
// queue, retention cleanup, diagnostics, the periodic janitor, and
// configuration scaffolding. Configuration resolution and logger setup live in
// commandContext so subcommands only describe their flags and output.
package main
