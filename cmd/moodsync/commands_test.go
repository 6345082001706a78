package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moodsync/internal/config"
	"moodsync/internal/idempotency"
	"moodsync/internal/logging"
	"moodsync/internal/testsupport"
)

func TestCheckReportsNewSubmission(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{
		"check", "--owner", "u1", "--mood", "70", "--energy", "5", "--anxiety", "3",
		"--notes", "", "--at", "2024-03-15T09:30:42Z",
	}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Tier:        new")
	requireContains(t, out, "Duplicate:   no")
	requireContains(t, out, "_202403150930")

	fp, err := idempotency.Fingerprint(idempotency.Submission{
		OwnerID: "u1",
		Mood:    intPtr(70), Energy: intPtr(5), Anxiety: intPtr(3),
		Notes: strPtr(""),
	}, mustParse(t, "2024-03-15T09:30:42Z"))
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	requireContains(t, out, "Local ID:    mood_"+fp+"_202403150930")

	// check records the new entry as queued
	out, _, err = runCLI(t, []string{"stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats idempotency.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalEntries != 1 || stats.QueuedEntries != 1 {
		t.Fatalf("expected one queued record after check, got %+v", stats)
	}

	out, _, err = runCLI(t, []string{
		"check", "--owner", "u1", "--mood", "70", "--energy", "5", "--anxiety", "3",
		"--notes", "", "--at", "2024-03-15T09:30:55Z",
	}, env.configPath)
	if err != nil {
		t.Fatalf("repeat check: %v", err)
	}
	requireContains(t, out, "Tier:        exact_key")
	requireContains(t, out, "Duplicate:   yes")
	requireContains(t, out, "Existing:    queued (attempts 1)")
}

func TestCheckLogsCarryCorrelationID(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Logging.Format = "json"
	env.cfg.Logging.Level = "debug"
	writeTestConfig(t, env.configPath, env.cfg)

	if _, _, err := runCLI(t, []string{"check", "--owner", "u1", "--mood", "40"}, env.configPath); err != nil {
		t.Fatalf("check: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(env.cfg.Logging.Dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	found := false
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if record["msg"] != "submission recorded" {
			continue
		}
		found = true
		if id, _ := record[logging.FieldCorrelationID].(string); id == "" {
			t.Fatalf("expected correlation id on %v", record)
		}
		if fp, _ := record[logging.FieldFingerprint].(string); fp == "" {
			t.Fatalf("expected fingerprint on %v", record)
		}
	}
	if !found {
		t.Fatalf("no submission log line in %q", content)
	}
}

func TestSubmitSuppressesDuplicates(t *testing.T) {
	env := setupCLITestEnv(t)
	args := []string{"submit", "--owner", "u1", "--mood", "70", "--energy", "5", "--tag", "calm"}

	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	requireContains(t, out, "Queued mood_")

	out, _, err = runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	requireContains(t, out, "Duplicate of mood_")
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, append(args, "--json"), env.configPath)
	if err != nil {
		t.Fatalf("json submit: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode submit json: %v\n%s", err, out)
	}
	if payload["is_duplicate"] != true || payload["should_process"] != false {
		t.Fatalf("unexpected submit payload: %v", payload)
	}

	other := []string{"submit", "--owner", "u2", "--mood", "70", "--energy", "5", "--tag", "calm"}
	out, _, err = runCLI(t, other, env.configPath)
	if err != nil {
		t.Fatalf("other owner submit: %v", err)
	}
	requireContains(t, out, "Queued mood_")
}

func TestMarkCommandsAndStats(t *testing.T) {
	env := setupCLITestEnv(t)

	steps := [][]string{
		{"mark", "processed", "mood_a_1", "--fingerprint", "fa", "--owner", "u1"},
		{"mark", "processed", "mood_b_1", "--fingerprint", "fb", "--owner", "u1"},
		{"mark", "queued", "mood_c_1", "--fingerprint", "fc", "--owner", "u2"},
		{"mark", "queued", "mood_d_1", "--fingerprint", "fd", "--owner", "u1"},
		{"mark", "failed", "mood_d_1"},
		{"mark", "failed", "mood_unknown_1"},
	}
	for _, step := range steps {
		if _, _, err := runCLI(t, step, env.configPath); err != nil {
			t.Fatalf("%v: %v", step, err)
		}
	}

	out, _, err := runCLI(t, []string{"stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats idempotency.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalEntries != 4 || stats.ProcessedEntries != 2 || stats.QueuedEntries != 1 || stats.FailedEntries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestEntry == nil {
		t.Fatal("expected oldest entry timestamp")
	}

	out, _, err = runCLI(t, []string{"stats", "--owner", "u2"}, env.configPath)
	if err != nil {
		t.Fatalf("stats table: %v", err)
	}
	for _, fragment := range []string{"Metric", "Processed", "Queued", "u2"} {
		requireContains(t, out, fragment)
	}

	if _, _, err := runCLI(t, []string{"mark", "queued"}, env.configPath); err == nil {
		t.Fatal("expected error when local id is missing")
	}
}

func TestCleanupValidatesRetention(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"cleanup", "--retention-days", "0"}, env.configPath)
	if !errors.Is(err, idempotency.ErrInvalidRetention) {
		t.Fatalf("expected ErrInvalidRetention, got %v", err)
	}
	_, _, err = runCLI(t, []string{"cleanup", "--retention-days", "400"}, env.configPath)
	if !errors.Is(err, idempotency.ErrInvalidRetention) {
		t.Fatalf("expected ErrInvalidRetention, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"mark", "queued", "mood_a_1", "--owner", "u1"}, env.configPath); err != nil {
		t.Fatalf("mark queued: %v", err)
	}
	out, _, err := runCLI(t, []string{"cleanup", "--retention-days", "30"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	requireContains(t, out, "Removed 0 expired entries (retention 30 days)")
}

func TestJanitorOnce(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithBackend(config.BackendFile))

	out, _, err := runCLI(t, []string{"janitor", "--once"}, env.configPath)
	if err != nil {
		t.Fatalf("janitor --once: %v", err)
	}
	requireContains(t, out, "Removed 0 expired entries and 0 old log files")
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Storage: sqlite")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[idempotency]")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[idempotency]\nretention_days = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "retention_days") {
		t.Fatalf("expected retention validation error, got %v", err)
	}
}
