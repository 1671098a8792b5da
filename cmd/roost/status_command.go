package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roost/internal/coordaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and fleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				status, err := access.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				if status.Running {
					fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
				} else {
					fmt.Fprintln(out, "Daemon:   not running (direct store access)")
				}
				fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
				if status.Degraded {
					fmt.Fprintln(out, "Backend:  degraded (in-memory fallback active)")
				}
				fmt.Fprintf(out, "Fleet:    %d online, %d offline of %d agents (stale after %ds)\n",
					status.Fleet.Online, status.Fleet.Offline, status.Fleet.Total, status.Fleet.StaleThresholdSeconds)
				return nil
			})
		},
	}
}
