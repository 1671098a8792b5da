package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roost/internal/coordaccess"
)

func newLocksCommand(ctx *commandContext) *cobra.Command {
	locksCmd := &cobra.Command{
		Use:   "locks",
		Short: "Manage resource-path locks",
	}

	locksCmd.AddCommand(newLocksListCommand(ctx))
	locksCmd.AddCommand(newLocksAcquireCommand(ctx))
	locksCmd.AddCommand(newLocksCheckCommand(ctx))
	locksCmd.AddCommand(newLocksReleaseCommand(ctx))
	return locksCmd
}

func newLocksListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List held locks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				list, err := access.ListLocks(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No locks held")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, lock := range list {
					rows = append(rows, []string{lock.ResourcePath, lock.LockedBy, lock.LockedAt, lock.Reason})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"RESOURCE", "LOCKED BY", "LOCKED AT", "REASON"}, rows, nil))
				return nil
			})
		},
	}
}

func newLocksAcquireCommand(ctx *commandContext) *cobra.Command {
	var by, reason string

	cmd := &cobra.Command{
		Use:   "acquire <resource-path>",
		Short: "Lock a resource path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				lock, err := access.AcquireLock(cmd.Context(), args[0], by, reason)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, lock)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Locked %s for %s\n", lock.ResourcePath, lock.LockedBy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Agent id acquiring the lock")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the lock is needed")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newLocksCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <resource-path>",
		Short: "Check whether a resource path is locked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				lock, ok, err := access.CheckLock(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"locked": ok, "lock": lock})
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is unlocked\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is locked by %s since %s\n", lock.ResourcePath, lock.LockedBy, lock.LockedAt)
				return nil
			})
		},
	}
}

func newLocksReleaseCommand(ctx *commandContext) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "release <resource-path>",
		Short: "Release a lock you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				if err := access.ReleaseLock(cmd.Context(), args[0], by); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Agent id releasing the lock")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}
