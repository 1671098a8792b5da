package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roost/internal/coordaccess"
)

func newClaimsCommand(ctx *commandContext) *cobra.Command {
	claimsCmd := &cobra.Command{
		Use:   "claims",
		Short: "Manage work-item claims",
	}

	claimsCmd.AddCommand(newClaimsListCommand(ctx))
	claimsCmd.AddCommand(newClaimsTakeCommand(ctx))
	claimsCmd.AddCommand(newClaimsCheckCommand(ctx))
	claimsCmd.AddCommand(newClaimsReleaseCommand(ctx))
	return claimsCmd
}

func newClaimsListCommand(ctx *commandContext) *cobra.Command {
	var includeStale bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				list, err := access.ListClaims(cmd.Context(), includeStale)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active claims")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, claim := range list {
					rows = append(rows, []string{claim.What, claim.By, claim.Since, claim.Description})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"WHAT", "BY", "SINCE", "DESCRIPTION"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeStale, "stale", false, "Include stale claims")
	return cmd
}

func newClaimsTakeCommand(ctx *commandContext) *cobra.Command {
	var by, description string

	cmd := &cobra.Command{
		Use:   "take <what>",
		Short: "Claim a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				claim, err := access.Claim(cmd.Context(), args[0], by, description)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, claim)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s for %s\n", claim.What, claim.By)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Agent id taking the claim")
	cmd.Flags().StringVar(&description, "description", "", "What the work involves")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newClaimsCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <what>",
		Short: "Check whether a work item is claimed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				claim, ok, err := access.CheckClaim(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"claimed": ok, "claim": claim})
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is unclaimed\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is claimed by %s since %s\n", claim.What, claim.By, claim.Since)
				return nil
			})
		},
	}
}

func newClaimsReleaseCommand(ctx *commandContext) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "release <what>",
		Short: "Release a claim you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				if err := access.ReleaseClaim(cmd.Context(), args[0], by); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Agent id releasing the claim")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}
