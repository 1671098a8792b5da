package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"roost/internal/api"
	"roost/internal/coordaccess"
)

func newHeartbeatCommand(ctx *commandContext) *cobra.Command {
	heartbeatCmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Record and inspect agent heartbeats",
	}

	heartbeatCmd.AddCommand(newHeartbeatSendCommand(ctx))
	heartbeatCmd.AddCommand(newHeartbeatListCommand(ctx))
	heartbeatCmd.AddCommand(newHeartbeatShowCommand(ctx))
	heartbeatCmd.AddCommand(newHeartbeatRemoveCommand(ctx))
	heartbeatCmd.AddCommand(newHeartbeatHistoryCommand(ctx))
	return heartbeatCmd
}

func newHeartbeatSendCommand(ctx *commandContext) *cobra.Command {
	var status, sessionHealth string
	var errorCount int

	cmd := &cobra.Command{
		Use:   "send <agent-id>",
		Short: "Record a heartbeat for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				view, wasOffline, err := access.RecordHeartbeat(cmd.Context(), api.HeartbeatRequest{
					AgentID:       args[0],
					Status:        status,
					SessionHealth: sessionHealth,
					ErrorCount:    errorCount,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.HeartbeatResponse{Success: true, Heartbeat: view, WasOffline: wasOffline})
				}
				if wasOffline {
					fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat recorded for %s (recovered from offline)\n", view.AgentID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat recorded for %s\n", view.AgentID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Agent status (active, idle, busy, error)")
	cmd.Flags().StringVar(&sessionHealth, "session-health", "", "Session health note")
	cmd.Flags().IntVar(&errorCount, "error-count", 0, "Accumulated error count")
	return cmd
}

func newHeartbeatListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show fleet liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				views, summary, err := access.Heartbeats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.HeartbeatListResponse{Agents: views, Summary: summary})
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No heartbeats recorded")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, view := range views {
					rows = append(rows, []string{
						view.AgentID,
						view.Status,
						onlineLabel(view.Online),
						strconv.FormatInt(view.SecondsSinceHeartbeat, 10) + "s",
						strconv.Itoa(view.ErrorCount),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"AGENT", "STATUS", "LIVENESS", "LAST SEEN", "ERRORS"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				fmt.Fprintf(out, "%d online, %d offline of %d agents\n", summary.Online, summary.Offline, summary.Total)
				return nil
			})
		},
	}
}

func newHeartbeatShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show one agent's heartbeat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				view, ok, err := access.Heartbeat(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"found": ok, "heartbeat": view})
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "No heartbeat recorded for %s\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%s), last seen %ds ago\n",
					view.AgentID, onlineLabel(view.Online), view.Status, view.SecondsSinceHeartbeat)
				return nil
			})
		},
	}
}

func newHeartbeatRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agent-id>",
		Short: "Remove an agent's heartbeat record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				if err := access.RemoveHeartbeat(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed heartbeat for %s\n", args[0])
				return nil
			})
		},
	}
}

func newHeartbeatHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <agent-id>",
		Short: "Show an agent's liveness transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				events, err := access.HeartbeatHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.HeartbeatHistoryResponse{Events: events})
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintf(out, "No events recorded for %s\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{event.Timestamp, event.Type})
				}
				fmt.Fprintln(out, renderTable(out, []string{"WHEN", "EVENT"}, rows, nil))
				return nil
			})
		},
	}
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
