package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"moodsync/internal/idempotency"
)

func newMarkCommand(ctx *commandContext) *cobra.Command {
	markCmd := &cobra.Command{
		Use:   "mark",
		Short: "Report lifecycle transitions from the sync queue",
	}
	markCmd.AddCommand(newMarkUpsertCommand(ctx, "queued", "Record that an entry is waiting in the sync queue",
		(*idempotency.Service).MarkQueued))
	markCmd.AddCommand(newMarkUpsertCommand(ctx, "processed", "Record that an entry reached remote storage",
		(*idempotency.Service).MarkProcessed))
	markCmd.AddCommand(newMarkFailedCommand(ctx))
	return markCmd
}

type upsertFunc func(*idempotency.Service, context.Context, string, string, string) error

func newMarkUpsertCommand(ctx *commandContext, state, short string, apply upsertFunc) *cobra.Command {
	var fingerprint, owner string

	cmd := &cobra.Command{
		Use:   state + " <local-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			localID := strings.TrimSpace(args[0])
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				if err := apply(svc, commandCtx(cmd), localID, fingerprint, owner); err != nil {
					return fmt.Errorf("mark %s: %w", state, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s %s\n", localID, state)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Content fingerprint returned by check")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner (account) of the entry")
	return cmd
}

func newMarkFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "failed <local-id>",
		Short: "Reopen an entry for retry after a failed sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			localID := strings.TrimSpace(args[0])
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				if err := svc.MarkFailed(commandCtx(cmd), localID); err != nil {
					return fmt.Errorf("mark failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s failed\n", localID)
				return nil
			})
		},
	}
}
