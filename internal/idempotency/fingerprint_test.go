package idempotency_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodsync/internal/idempotency"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func sampleSubmission(ts time.Time) idempotency.Submission {
	return idempotency.Submission{
		OwnerID:   "u1",
		Mood:      intPtr(70),
		Energy:    intPtr(5),
		Anxiety:   intPtr(3),
		Notes:     strPtr(""),
		Timestamp: ts,
	}
}

func TestCanonicalFormFieldOrder(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
	sub := sampleSubmission(ts)
	sub.Sleep = floatPtr(7.5)
	sub.Tags = []string{"Work", "calm", "work "}

	canonical, err := idempotency.CanonicalForm(sub, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "u1|70|5|3|7.5||calm,work|2024-03-15", canonical)
}

func TestCanonicalFormAbsentFieldsUseSentinel(t *testing.T) {
	now := time.Date(2024, time.March, 15, 23, 59, 0, 0, time.UTC)
	canonical, err := idempotency.CanonicalForm(idempotency.Submission{OwnerID: " u2 "}, now)
	require.NoError(t, err)
	assert.Equal(t, "u2|-|-|-|-|-|-|2024-03-15", canonical)
}

func TestFingerprintIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2024, time.March, 15, 0, 1, 0, 0, time.UTC)
	evening := time.Date(2024, time.March, 15, 23, 58, 0, 0, time.UTC)
	nextDay := time.Date(2024, time.March, 16, 0, 1, 0, 0, time.UTC)

	a, err := idempotency.Fingerprint(sampleSubmission(morning), time.Time{})
	require.NoError(t, err)
	b, err := idempotency.Fingerprint(sampleSubmission(evening), time.Time{})
	require.NoError(t, err)
	c, err := idempotency.Fingerprint(sampleSubmission(nextDay), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFingerprintUsesUTCDay(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	// 21:00 local on the 14th is 02:00 UTC on the 15th.
	local := time.Date(2024, time.March, 14, 21, 0, 0, 0, zone)
	utc := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)

	a, err := idempotency.Fingerprint(sampleSubmission(local), time.Time{})
	require.NoError(t, err)
	b, err := idempotency.Fingerprint(sampleSubmission(utc), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
	base, err := idempotency.Fingerprint(sampleSubmission(ts), time.Time{})
	require.NoError(t, err)

	variants := map[string]func(*idempotency.Submission){
		"owner":        func(s *idempotency.Submission) { s.OwnerID = "u9" },
		"mood":         func(s *idempotency.Submission) { s.Mood = intPtr(71) },
		"absent mood":  func(s *idempotency.Submission) { s.Mood = nil },
		"notes":        func(s *idempotency.Submission) { s.Notes = strPtr("tired") },
		"absent notes": func(s *idempotency.Submission) { s.Notes = nil },
		"tags":         func(s *idempotency.Submission) { s.Tags = []string{"calm"} },
		"sleep":        func(s *idempotency.Submission) { s.Sleep = floatPtr(0) },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			sub := sampleSubmission(ts)
			mutate(&sub)
			fp, err := idempotency.Fingerprint(sub, time.Time{})
			require.NoError(t, err)
			assert.NotEqual(t, base, fp)
		})
	}
}

func TestFingerprintNormalizesText(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

	composed := sampleSubmission(ts)
	composed.Notes = strPtr("caf\u00e9  felt   good")
	composed.Tags = []string{"Morning", "CALM"}

	decomposed := sampleSubmission(ts)
	decomposed.Notes = strPtr("  cafe\u0301 felt good\n")
	decomposed.Tags = []string{"calm", "morning", "calm"}

	a, err := idempotency.Fingerprint(composed, time.Time{})
	require.NoError(t, err)
	b, err := idempotency.Fingerprint(decomposed, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprintRejectsMalformedInput(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

	_, err := idempotency.Fingerprint(idempotency.Submission{OwnerID: "  ", Timestamp: ts}, time.Time{})
	assert.ErrorIs(t, err, idempotency.ErrFingerprint)

	sub := sampleSubmission(ts)
	sub.Sleep = floatPtr(math.NaN())
	_, err = idempotency.Fingerprint(sub, time.Time{})
	assert.ErrorIs(t, err, idempotency.ErrFingerprint)
	assert.Equal(t, "fingerprint", idempotency.Kind(err))
}

func TestFingerprintDefaultsToNow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
	sub := sampleSubmission(time.Time{})

	canonical, err := idempotency.CanonicalForm(sub, now)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(canonical, "|2024-03-15"))
}

func TestLocalIDTruncatesToMinute(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2024, time.March, 15, 11, 30, 45, 0, zone)

	assert.Equal(t, "mood_abc_202403150930", idempotency.LocalID("mood", "abc", ts))
	assert.Equal(t,
		idempotency.LocalID("mood", "abc", ts),
		idempotency.LocalID("mood", "abc", ts.Add(-40*time.Second)),
	)
	assert.NotEqual(t,
		idempotency.LocalID("mood", "abc", ts),
		idempotency.LocalID("mood", "abc", ts.Add(20*time.Second)),
	)
}

func TestFallbackIDIsRandom(t *testing.T) {
	a := idempotency.FallbackID("mood")
	b := idempotency.FallbackID("mood")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "mood_fallback_"))
	assert.True(t, idempotency.IsFallbackID(a))
	assert.False(t, idempotency.IsFallbackID("mood_abc_202403150930"))
}
