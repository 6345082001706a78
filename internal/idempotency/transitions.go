package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moodsync/internal/kvstore"
	"moodsync/internal/logging"
)

// MarkQueued records that localID is waiting in the sync queue. The record is
// created with one attempt when absent; a processed record stays processed.
func (s *Service) MarkQueued(ctx context.Context, localID, fingerprint, ownerID string) error {
	return s.upsert(ctx, "mark queued", StateQueued, localID, fingerprint, ownerID)
}

// MarkProcessed records that localID reached remote storage. Attempts are
// preserved for existing records.
func (s *Service) MarkProcessed(ctx context.Context, localID, fingerprint, ownerID string) error {
	return s.upsert(ctx, "mark processed", StateProcessed, localID, fingerprint, ownerID)
}

// MarkFailed reopens localID for retry. Unknown ids are ignored.
func (s *Service) MarkFailed(ctx context.Context, localID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateLocalID(localID); err != nil {
		return err
	}
	rec, err := s.load(ctx, "mark failed", localID)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			s.discardCorrupt(ctx, logging.WithContext(ctx, s.logger), s.key(localID))
			return nil
		}
		return err
	}
	if rec == nil {
		s.logger.Debug("mark failed ignored for unknown record", logging.String(logging.FieldLocalID, localID))
		return nil
	}
	rec.State = StateFailed
	rec.LastAttemptAt = s.now().UTC()
	if err := s.save(ctx, "mark failed", rec); err != nil {
		return err
	}
	s.logger.Info("record marked failed",
		logging.String(logging.FieldLocalID, localID),
		logging.Int("attempts", rec.Attempts),
	)
	return nil
}

func (s *Service) upsert(ctx context.Context, op string, state State, localID, fingerprint, ownerID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateLocalID(localID); err != nil {
		return err
	}
	now := s.now().UTC()
	rec, err := s.load(ctx, op, localID)
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return err
	}
	if rec == nil {
		// Absent or unreadable: start a fresh record under this id.
		rec = &Record{
			LocalID:            localID,
			ContentFingerprint: fingerprint,
			OwnerID:            strings.TrimSpace(ownerID),
			CreatedAt:          now,
			Attempts:           1,
		}
	}
	if rec.State == StateProcessed && state == StateQueued {
		// Processed is terminal until the caller marks the record failed.
		s.logger.Debug("mark queued ignored for processed record", logging.String(logging.FieldLocalID, localID))
		return nil
	}
	rec.State = state
	rec.LastAttemptAt = now
	if rec.ContentFingerprint == "" {
		rec.ContentFingerprint = fingerprint
	}
	if rec.OwnerID == "" {
		rec.OwnerID = strings.TrimSpace(ownerID)
	}
	if err := s.save(ctx, op, rec); err != nil {
		return err
	}
	s.logger.Debug("record state updated",
		logging.String(logging.FieldLocalID, localID),
		logging.String("state", string(state)),
		logging.Int("attempts", rec.Attempts),
	)
	return nil
}

func validateLocalID(localID string) error {
	if err := kvstore.ValidateKey(localID); err != nil {
		return fmt.Errorf("%w: local id %q", ErrInvalidConfig, localID)
	}
	return nil
}
