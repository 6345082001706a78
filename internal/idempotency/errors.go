package idempotency

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStorageRead      = errors.New("storage read failed")
	ErrStorageWrite     = errors.New("storage write failed")
	ErrCorruptRecord    = errors.New("corrupt record")
	ErrFingerprint      = errors.New("fingerprint computation failed")
	ErrInvalidRetention = errors.New("retention days must be between 1 and 365")
	ErrInvalidConfig    = errors.New("invalid idempotency configuration")
)

// Error tags a failure with one of the sentinel kinds above plus the
// operation and storage key involved.
type Error struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Key != "" {
		parts = append(parts, e.Key)
	}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return "idempotency failure"
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes both the kind marker and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ErrorKind returns a short classification used in log fields.
func (e *Error) ErrorKind() string {
	return kindName(e.Kind)
}

// Kind reports the classification of err, or "unknown".
func Kind(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}
	for _, marker := range []error{ErrStorageRead, ErrStorageWrite, ErrCorruptRecord, ErrFingerprint, ErrInvalidRetention, ErrInvalidConfig} {
		if errors.Is(err, marker) {
			return kindName(marker)
		}
	}
	return "unknown"
}

func kindName(kind error) string {
	switch kind {
	case ErrStorageRead:
		return "storage_read"
	case ErrStorageWrite:
		return "storage_write"
	case ErrCorruptRecord:
		return "corrupt_record"
	case ErrFingerprint:
		return "fingerprint"
	case ErrInvalidRetention:
		return "invalid_retention"
	case ErrInvalidConfig:
		return "configuration"
	default:
		return "unknown"
	}
}

func wrap(kind error, op, key string, err error) error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

func fingerprintError(format string, args ...any) error {
	return wrap(ErrFingerprint, "fingerprint", "", fmt.Errorf(format, args...))
}
