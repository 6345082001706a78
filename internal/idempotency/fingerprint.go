package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	fieldSeparator = "|"
	absentSentinel = "-"
	dayLayout      = "2006-01-02"
)

// Hasher turns the canonical submission string into a fingerprint.
type Hasher func(canonical []byte) string

// SHA256Hex is the default Hasher.
func SHA256Hex(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

var tagCaser = cases.Lower(language.Und)

// Fingerprint hashes sub with SHA256Hex. A zero Timestamp is replaced by now.
func Fingerprint(sub Submission, now time.Time) (string, error) {
	return fingerprintWith(SHA256Hex, sub, now)
}

func fingerprintWith(hash Hasher, sub Submission, now time.Time) (string, error) {
	canonical, err := CanonicalForm(sub, now)
	if err != nil {
		return "", err
	}
	fp := hash([]byte(canonical))
	if fp == "" {
		return "", fingerprintError("hasher returned empty digest")
	}
	return fp, nil
}

// CanonicalForm renders the normalized fields of sub in fixed order:
// owner, mood, energy, anxiety, sleep, notes, tags, UTC day.
func CanonicalForm(sub Submission, now time.Time) (string, error) {
	owner := strings.TrimSpace(sub.OwnerID)
	if owner == "" {
		return "", fingerprintError("owner id is required")
	}
	sleep, err := formatFloat(sub.Sleep)
	if err != nil {
		return "", err
	}

	fields := []string{
		owner,
		formatInt(sub.Mood),
		formatInt(sub.Energy),
		formatInt(sub.Anxiety),
		sleep,
		normalizeNotes(sub.Notes),
		normalizeTags(sub.Tags),
		submissionTime(sub, now).UTC().Format(dayLayout),
	}
	return strings.Join(fields, fieldSeparator), nil
}

func submissionTime(sub Submission, now time.Time) time.Time {
	if sub.Timestamp.IsZero() {
		return now
	}
	return sub.Timestamp
}

func formatInt(v *int) string {
	if v == nil {
		return absentSentinel
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) (string, error) {
	if v == nil {
		return absentSentinel, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "", fingerprintError("sleep value %v is not finite", *v)
	}
	return strconv.FormatFloat(*v, 'f', -1, 64), nil
}

func normalizeNotes(v *string) string {
	if v == nil {
		return absentSentinel
	}
	// Separator must not leak into the canonical form.
	text := strings.ReplaceAll(norm.NFC.String(*v), fieldSeparator, " ")
	return strings.Join(strings.Fields(text), " ")
}

func normalizeTags(tags []string) string {
	if len(tags) == 0 {
		return absentSentinel
	}
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tagCaser.String(norm.NFC.String(tag)))
		tag = strings.NewReplacer(",", " ", fieldSeparator, " ").Replace(tag)
		if tag = strings.Join(strings.Fields(tag), " "); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		return absentSentinel
	}
	slices.Sort(cleaned)
	return strings.Join(slices.Compact(cleaned), ",")
}
