package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roost/internal/coordaccess"
)

func newZonesCommand(ctx *commandContext) *cobra.Command {
	zonesCmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage directory-level ownership zones",
	}

	zonesCmd.AddCommand(newZonesListCommand(ctx))
	zonesCmd.AddCommand(newZonesClaimCommand(ctx))
	zonesCmd.AddCommand(newZonesReleaseCommand(ctx))
	return zonesCmd
}

func newZonesListCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List zones, optionally for one owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				list, err := access.ListZones(cmd.Context(), owner)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No zones claimed")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, zone := range list {
					rows = append(rows, []string{zone.ZoneID, zone.Path, zone.Owner, zone.ClaimedAt})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"ZONE", "PATH", "OWNER", "CLAIMED AT"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only zones owned by this agent")
	return cmd
}

func newZonesClaimCommand(ctx *commandContext) *cobra.Command {
	var owner, description string

	cmd := &cobra.Command{
		Use:   "claim <zone-id> <path>",
		Short: "Claim a zone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				zone, err := access.ClaimZone(cmd.Context(), args[0], args[1], owner, description)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, zone)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Zone %s (%s) claimed by %s\n", zone.ZoneID, zone.Path, zone.Owner)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Agent id claiming the zone")
	cmd.Flags().StringVar(&description, "description", "", "What the zone covers")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newZonesReleaseCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "release <zone-id>",
		Short: "Release a zone you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				if err := access.ReleaseZone(cmd.Context(), args[0], owner); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released zone %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Agent id releasing the zone")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
