package idempotency

import (
	"context"
	"strings"

	"moodsync/internal/kvstore"
)

// Stats aggregates stored records, restricted to ownerID when it is non-empty.
// Undecodable records are counted as corrupt and otherwise ignored.
func (s *Service) Stats(ctx context.Context, ownerID string) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ownerID = strings.TrimSpace(ownerID)

	var stats Stats
	entries, err := kvstore.ReadAll(ctx, s.store, s.namespace)
	if err != nil {
		return stats, wrap(ErrStorageRead, "stats", s.namespace, err)
	}
	for _, entry := range entries {
		rec, err := decodeRecord(entry.Value)
		if err != nil {
			stats.CorruptEntries++
			continue
		}
		if ownerID != "" && rec.OwnerID != ownerID {
			continue
		}

		stats.TotalEntries++
		switch rec.State {
		case StateProcessed:
			stats.ProcessedEntries++
		case StateQueued:
			stats.QueuedEntries++
		case StateFailed:
			stats.FailedEntries++
		}
		if stats.OldestEntry == nil || rec.CreatedAt.Before(*stats.OldestEntry) {
			created := rec.CreatedAt
			stats.OldestEntry = &created
		}
	}
	return stats, nil
}
