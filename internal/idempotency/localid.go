package idempotency

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const minuteLayout = "200601021504"

// LocalID derives the storage identifier for a fingerprint at ts. Timestamps
// inside the same UTC minute yield the same identifier.
func LocalID(prefix, fingerprint string, ts time.Time) string {
	return prefix + "_" + fingerprint + "_" + ts.UTC().Format(minuteLayout)
}

// FallbackID returns a random identifier that is not derived from content.
func FallbackID(prefix string) string {
	return prefix + "_fallback_" + uuid.NewString()
}

// IsFallbackID reports whether id was produced by FallbackID.
func IsFallbackID(id string) bool {
	return strings.Contains(id, "_fallback_")
}
