package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"moodsync/internal/kvstore"
	"moodsync/internal/logging"
)

// CheckIdempotency classifies sub as new, duplicate or retry. It never
// returns an error: storage and fingerprint failures produce a fail-open
// result carrying a fallback LocalID and the classified Err.
//
// A new submission is recorded as queued with one attempt before the result
// is returned, so a repeat check is caught on the exact key even when the
// caller has not marked anything yet. Its CreatedAt is the submission time.
func (s *Service) CheckIdempotency(ctx context.Context, sub Submission) CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	now := s.now()
	ts := submissionTime(sub, now)
	logger := logging.WithContext(ctx, s.logger)

	fp, err := fingerprintWith(s.hash, sub, now)
	if err != nil {
		return s.failOpen(logger, "", err)
	}
	localID := LocalID(s.prefix, fp, ts)
	ownerID := strings.TrimSpace(sub.OwnerID)
	logger = logger.With(
		logging.String(logging.FieldLocalID, localID),
		logging.String(logging.FieldOwnerID, ownerID),
		logging.String(logging.FieldFingerprint, fp),
	)

	rec, err := s.load(ctx, "check", localID)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			s.discardCorrupt(ctx, logger, s.key(localID))
		}
		return s.failOpen(logger, fp, err)
	}
	if rec != nil {
		return s.classify(ctx, logger, TierExactKey, fp, rec, now)
	}

	match, err := s.findContentMatch(ctx, logger, ownerID, fp, ts)
	if err != nil {
		return s.failOpen(logger, fp, err)
	}
	if match != nil {
		return s.classify(ctx, logger, TierContent, fp, match, now)
	}

	rec = &Record{
		LocalID:            localID,
		ContentFingerprint: fp,
		OwnerID:            ownerID,
		CreatedAt:          ts.UTC(),
		LastAttemptAt:      now.UTC(),
		Attempts:           1,
		State:              StateQueued,
	}
	if err := s.save(ctx, "check", rec); err != nil {
		return s.failOpen(logger, fp, err)
	}
	logger.Debug("submission recorded", logging.String(logging.FieldTier, string(TierNew)))
	return CheckResult{
		LocalID:       localID,
		Fingerprint:   fp,
		ShouldProcess: true,
		ShouldQueue:   true,
		Tier:          TierNew,
	}
}

// classify maps an existing record to a result. Processed and queued records
// are duplicates; failed records are reopened and their attempt count grows.
func (s *Service) classify(ctx context.Context, logger *slog.Logger, tier Tier, fp string, rec *Record, now time.Time) CheckResult {
	result := CheckResult{
		LocalID:     rec.LocalID,
		Fingerprint: fp,
		Existing:    rec,
		Tier:        tier,
	}
	if rec.State != StateFailed {
		result.IsDuplicate = true
		logger.Info("duplicate submission suppressed",
			logging.String(logging.FieldEventType, "duplicate_detected"),
			logging.String(logging.FieldTier, string(tier)),
			logging.String("existing_local_id", rec.LocalID),
			logging.String("state", string(rec.State)),
		)
		return result
	}

	rec.Attempts++
	rec.LastAttemptAt = now.UTC()
	if err := s.save(ctx, "check retry", rec); err != nil {
		return s.failOpen(logger, fp, err)
	}
	result.ShouldProcess = true
	result.ShouldQueue = true
	logger.Info("failed submission reopened for retry",
		logging.String(logging.FieldEventType, "retry_reopened"),
		logging.String(logging.FieldTier, string(tier)),
		logging.Int("attempts", rec.Attempts),
	)
	return result
}

// findContentMatch scans every record for the same owner and fingerprint
// created within the dedup window of ts. Processed and queued matches win
// over failed ones; ties go to the earliest record.
func (s *Service) findContentMatch(ctx context.Context, logger *slog.Logger, ownerID, fp string, ts time.Time) (*Record, error) {
	entries, err := kvstore.ReadAll(ctx, s.store, s.namespace)
	if err != nil {
		return nil, wrap(ErrStorageRead, "check content", s.namespace, err)
	}

	var active, failed *Record
	for _, entry := range entries {
		rec, err := decodeRecord(entry.Value)
		if err != nil {
			s.discardCorrupt(ctx, logger, entry.Key)
			continue
		}
		if rec.OwnerID != ownerID || rec.ContentFingerprint != fp {
			continue
		}
		if absDuration(rec.CreatedAt.Sub(ts)) > s.window {
			continue
		}
		if rec.State == StateFailed {
			failed = earliest(failed, rec)
		} else {
			active = earliest(active, rec)
		}
	}
	if active != nil {
		return active, nil
	}
	return failed, nil
}

func (s *Service) failOpen(logger *slog.Logger, fp string, err error) CheckResult {
	id := s.fallbackID(s.prefix)
	logging.WarnWithContext(logger, "idempotency check failed open", "idempotency_fail_open",
		logging.String(logging.FieldErrorHint, "inspect the idempotency store; duplicates may slip through until it recovers"),
		logging.String(logging.FieldImpact, "submission accepted without duplicate protection"),
		logging.String("error_kind", Kind(err)),
		logging.String("fallback_id", id),
		logging.Error(err),
	)
	return CheckResult{
		LocalID:       id,
		Fingerprint:   fp,
		ShouldProcess: true,
		ShouldQueue:   true,
		Tier:          TierFallback,
		Fallback:      true,
		Err:           err,
	}
}

func (s *Service) discardCorrupt(ctx context.Context, logger *slog.Logger, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		logger.Debug("corrupt record delete failed", logging.String("key", key), logging.Error(err))
		return
	}
	logging.WarnWithContext(logger, "corrupt idempotency record removed", "corrupt_record_removed",
		logging.String("key", key),
		logging.String(logging.FieldErrorHint, "check storage integrity if this repeats"),
		logging.String(logging.FieldImpact, "duplicate history for this entry was lost"),
	)
}

func earliest(current, candidate *Record) *Record {
	if current == nil || candidate.CreatedAt.Before(current.CreatedAt) {
		return candidate
	}
	return current
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
