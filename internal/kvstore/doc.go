// Package kvstore provides the key-value persistence the idempotency engine
// runs on.
//
// Store is a small contract: get, put, delete, and ordered
// prefix enumeration. Backends cover the deployment shapes moodsync supports:
//
//   - SQLiteStore: a single-table SQLite database (default, device-local)
//   - FileStore: one JSON document guarded by an advisory file lock
//   - RedisStore: a shared Redis keyspace under a namespace
//   - MemoryStore: process-local map for tests and dry runs
//
// ReadAll returns a whole key range, in one pass on backends that implement
// Scanner. No backend offers multi-key transactions; callers that need
// check-then-write semantics must tolerate interleaving.
package kvstore
