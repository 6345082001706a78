// Package idempotency prevents duplicate mood-log records created offline.
//
// A Service classifies each submission before the caller persists or queues it:
//   - Fingerprint hashes the normalized semantic fields plus the UTC day.
//   - LocalID derives a storage key from the fingerprint and the minute bucket,
//     so retries inside the same minute collapse onto one key.
//   - CheckIdempotency consults the exact key first, then scans for the same
//     owner and fingerprint inside the dedup window, and otherwise records the
//     submission as queued and reports it as new.
//
// Callers report lifecycle transitions with MarkQueued, MarkProcessed and
// MarkFailed as a record moves through the sync queue. CleanupOldEntries and
// Stats scan the same storage and are safe to run alongside checks.
//
// Storage faults never block a submission: CheckIdempotency fails open and
// returns a random fallback identifier together with the classified error.
package idempotency
