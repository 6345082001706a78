package idempotency

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of a tracked submission.
type State string

const (
	StateQueued    State = "queued"
	StateProcessed State = "processed"
	StateFailed    State = "failed"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateProcessed, StateFailed:
		return true
	default:
		return false
	}
}

// Tier names the detection step that decided a check.
type Tier string

const (
	TierExactKey Tier = "exact_key"
	TierContent  Tier = "content_window"
	TierNew      Tier = "new"
	TierFallback Tier = "fallback"
)

// Record is the persisted idempotency state of one submission.
type Record struct {
	LocalID            string    `json:"local_id"`
	ContentFingerprint string    `json:"content_fingerprint"`
	OwnerID            string    `json:"owner_id"`
	CreatedAt          time.Time `json:"created_at"`
	LastAttemptAt      time.Time `json:"last_attempt_at"`
	Attempts           int       `json:"attempts"`
	State              State     `json:"state"`
}

// Submission carries the semantic fields of a candidate mood entry. Nil
// pointers mark absent optional fields.
type Submission struct {
	OwnerID   string
	Mood      *int
	Energy    *int
	Anxiety   *int
	Sleep     *float64
	Notes     *string
	Tags      []string
	Timestamp time.Time
}

// CheckResult is the classification returned by CheckIdempotency.
type CheckResult struct {
	IsDuplicate   bool    `json:"is_duplicate"`
	LocalID       string  `json:"local_id"`
	Fingerprint   string  `json:"fingerprint,omitempty"`
	Existing      *Record `json:"existing,omitempty"`
	ShouldProcess bool    `json:"should_process"`
	ShouldQueue   bool    `json:"should_queue"`
	Tier          Tier    `json:"tier"`
	Fallback      bool    `json:"fallback,omitempty"`
	Err           error   `json:"-"`
}

// Stats aggregates stored records for diagnostics.
type Stats struct {
	TotalEntries     int        `json:"total_entries"`
	ProcessedEntries int        `json:"processed_entries"`
	QueuedEntries    int        `json:"queued_entries"`
	FailedEntries    int        `json:"failed_entries"`
	CorruptEntries   int        `json:"corrupt_entries"`
	OldestEntry      *time.Time `json:"oldest_entry,omitempty"`
}

func encodeRecord(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.LocalID == "" || !rec.State.Valid() {
		return nil, fmt.Errorf("record missing local id or state %q", rec.State)
	}
	if rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("record %s missing created_at", rec.LocalID)
	}
	return &rec, nil
}
