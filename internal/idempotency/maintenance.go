package idempotency

import (
	"context"
	"time"

	"moodsync/internal/kvstore"
	"moodsync/internal/logging"
)

// CleanupOldEntries deletes records created before now minus the retention
// period, along with any record that no longer decodes. It returns the number
// of deleted entries; on error the count covers deletions made so far.
func (s *Service) CleanupOldEntries(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	days := s.RetentionPeriod()
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	entries, err := kvstore.ReadAll(ctx, s.store, s.namespace)
	if err != nil {
		return 0, wrap(ErrStorageRead, "cleanup", s.namespace, err)
	}

	deleted, corrupt := 0, 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		rec, decodeErr := decodeRecord(entry.Value)
		if decodeErr == nil && !rec.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, entry.Key); err != nil {
			return deleted, wrap(ErrStorageWrite, "cleanup", entry.Key, err)
		}
		deleted++
		if decodeErr != nil {
			corrupt++
		}
	}

	if deleted > 0 {
		s.logger.Info("idempotency records pruned",
			logging.String(logging.FieldEventType, "retention_cleanup"),
			logging.Int("deleted", deleted),
			logging.Int("corrupt", corrupt),
			logging.Int("retention_days", days),
		)
	}
	return deleted, nil
}
