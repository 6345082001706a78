package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"moodsync/internal/idempotency"
	"moodsync/internal/logging"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var flags submissionFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify a submission and record it when it is new",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.submission(cmd)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				reqCtx := logging.WithOwnerID(commandCtx(cmd), sub.OwnerID)
				result := svc.CheckIdempotency(reqCtx, sub)
				if jsonOutput {
					return writeJSON(cmd, checkOutput(result))
				}
				printCheckResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submissionFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Check a submission and queue it when it is new",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.submission(cmd)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc *idempotency.Service) error {
				reqCtx := logging.WithOwnerID(commandCtx(cmd), sub.OwnerID)
				result := svc.CheckIdempotency(reqCtx, sub)
				queued := false
				if result.ShouldQueue {
					if err := svc.MarkQueued(reqCtx, result.LocalID, result.Fingerprint, sub.OwnerID); err != nil {
						// The entry is still accepted; only its duplicate history is missing.
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not record queued state: %v\n", err)
					} else {
						queued = true
					}
				}

				if jsonOutput {
					out := checkOutput(result)
					out.Queued = queued
					return writeJSON(cmd, out)
				}
				out := cmd.OutOrStdout()
				switch {
				case result.IsDuplicate:
					fmt.Fprintf(out, "Duplicate of %s (%s, %s tier); nothing queued\n", result.LocalID, result.Existing.State, result.Tier)
				case queued:
					fmt.Fprintf(out, "Queued %s\n", result.LocalID)
				default:
					fmt.Fprintf(out, "Accepted %s without queue record\n", result.LocalID)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type checkJSON struct {
	idempotency.CheckResult
	Error  string `json:"error,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

func checkOutput(result idempotency.CheckResult) checkJSON {
	out := checkJSON{CheckResult: result}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out
}

func printCheckResult(out io.Writer, result idempotency.CheckResult) {
	fmt.Fprintf(out, "Local ID:    %s\n", result.LocalID)
	if result.Fingerprint != "" {
		fmt.Fprintf(out, "Fingerprint: %s\n", result.Fingerprint)
	}
	fmt.Fprintf(out, "Tier:        %s\n", result.Tier)
	fmt.Fprintf(out, "Duplicate:   %s\n", yesNo(result.IsDuplicate))
	fmt.Fprintf(out, "Process:     %s\n", yesNo(result.ShouldProcess))
	fmt.Fprintf(out, "Queue:       %s\n", yesNo(result.ShouldQueue))
	if result.Existing != nil {
		fmt.Fprintf(out, "Existing:    %s (attempts %d)\n", result.Existing.State, result.Existing.Attempts)
	}
	if result.Fallback {
		fmt.Fprintf(out, "Fallback:    yes (%v)\n", result.Err)
	}
}
