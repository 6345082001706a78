package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"moodsync/internal/idempotency"
)

type submissionFlags struct {
	owner   string
	mood    int
	energy  int
	anxiety int
	sleep   float64
	notes   string
	tags    []string
	at      string
}

func (f *submissionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.owner, "owner", "", "Owner (account) submitting the entry")
	flags.IntVar(&f.mood, "mood", 0, "Mood score")
	flags.IntVar(&f.energy, "energy", 0, "Energy level")
	flags.IntVar(&f.anxiety, "anxiety", 0, "Anxiety level")
	flags.Float64Var(&f.sleep, "sleep", 0, "Hours slept")
	flags.StringVar(&f.notes, "notes", "", "Free-text notes")
	flags.StringArrayVar(&f.tags, "tag", nil, "Tag (repeatable)")
	flags.StringVar(&f.at, "at", "", "Entry timestamp in RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("owner")
}

// submission converts the flags into an idempotency.Submission. Flags the
// user did not set stay absent rather than zero.
func (f *submissionFlags) submission(cmd *cobra.Command) (idempotency.Submission, error) {
	owner := strings.TrimSpace(f.owner)
	if owner == "" {
		return idempotency.Submission{}, errors.New("--owner is required")
	}
	sub := idempotency.Submission{OwnerID: owner, Tags: f.tags}

	flags := cmd.Flags()
	if flags.Changed("mood") {
		sub.Mood = &f.mood
	}
	if flags.Changed("energy") {
		sub.Energy = &f.energy
	}
	if flags.Changed("anxiety") {
		sub.Anxiety = &f.anxiety
	}
	if flags.Changed("sleep") {
		sub.Sleep = &f.sleep
	}
	if flags.Changed("notes") {
		sub.Notes = &f.notes
	}
	if at := strings.TrimSpace(f.at); at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return idempotency.Submission{}, fmt.Errorf("parse --at: %w", err)
		}
		sub.Timestamp = ts
	}
	return sub, nil
}
