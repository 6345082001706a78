package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"moodsync/internal/idempotency"
	"moodsync/internal/janitor"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete idempotency records older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				if cmd.Flags().Changed("retention-days") {
					if err := svc.SetRetentionPeriod(retentionDays); err != nil {
						return err
					}
				}
				deleted, err := svc.CleanupOldEntries(commandCtx(cmd))
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries (retention %d days)\n", deleted, svc.RetentionPeriod())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Override idempotency.retention_days for this run (1-365)")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored idempotency records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				stats, err := svc.Stats(commandCtx(cmd), owner)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats, owner, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only count records for this owner")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStats(stats idempotency.Stats, owner string, colorize bool) string {
	oldest := "-"
	if stats.OldestEntry != nil {
		oldest = stats.OldestEntry.UTC().Format(time.RFC3339)
	}
	scope := "all owners"
	if trimmed := strings.TrimSpace(owner); trimmed != "" {
		scope = trimmed
	}
	rows := [][]string{
		{"Scope", scope},
		{"Total", strconv.Itoa(stats.TotalEntries)},
		{"Processed", strconv.Itoa(stats.ProcessedEntries)},
		{"Queued", strconv.Itoa(stats.QueuedEntries)},
		{"Failed", strconv.Itoa(stats.FailedEntries)},
		{"Corrupt", strconv.Itoa(stats.CorruptEntries)},
		{"Oldest", oldest},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}, colorize)
}

func newJanitorCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var once bool

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Run retention cleanup periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				j, err := janitor.New(cfg, svc, ctx.loggerFor(cmd))
				if err != nil {
					return err
				}
				if once {
					result, err := j.Sweep(commandCtx(cmd))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries and %d old log files\n", result.RecordsDeleted, result.LogsDeleted)
					return nil
				}
				if cmd.Flags().Changed("interval") {
					if err := j.SetInterval(interval); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Janitor running; press Ctrl+C to stop\n")
				if err := j.Run(commandCtx(cmd)); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sweep interval (default janitor.interval_seconds)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and exit")
	return cmd
}
