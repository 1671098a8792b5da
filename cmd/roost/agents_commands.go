package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"roost/internal/coordaccess"
)

func newAgentsCommand(ctx *commandContext) *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage cloud-agent records and shadow failover",
	}

	agentsCmd.AddCommand(newAgentsListCommand(ctx))
	agentsCmd.AddCommand(newAgentsSpawnCommand(ctx))
	agentsCmd.AddCommand(newAgentsShowCommand(ctx))
	agentsCmd.AddCommand(newAgentsRegisterShadowCommand(ctx))
	agentsCmd.AddCommand(newAgentsActivateCommand(ctx))
	agentsCmd.AddCommand(newAgentsCheckStallsCommand(ctx))
	return agentsCmd
}

func newAgentsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cloud agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				agents, err := access.Agents(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, agents)
				}
				out := cmd.OutOrStdout()
				if len(agents) == 0 {
					fmt.Fprintln(out, "No cloud agents registered")
					return nil
				}
				rows := make([][]string, 0, len(agents))
				for _, agent := range agents {
					role := "primary"
					if agent.ShadowMode {
						role = "shadow of " + agent.ShadowFor
					}
					rows = append(rows, []string{agent.AgentID, agent.Name, agent.Status, role, agent.CreatedAt})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"AGENT", "NAME", "STATUS", "ROLE", "CREATED"}, rows, nil))
				return nil
			})
		},
	}
}

func newAgentsSpawnCommand(ctx *commandContext) *cobra.Command {
	var agentID, name string

	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Register a new cloud agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				agent, err := access.SpawnAgent(cmd.Context(), agentID, name)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, agent)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Spawned %s (%s)\n", agent.AgentID, agent.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "id", "", "Agent id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable name")
	return cmd
}

func newAgentsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show one cloud-agent record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				agent, ok, err := access.Agent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("agent %s not found", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, agent)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Agent:   %s\n", agent.AgentID)
				if agent.Name != "" {
					fmt.Fprintf(out, "Name:    %s\n", agent.Name)
				}
				fmt.Fprintf(out, "Status:  %s\n", agent.Status)
				fmt.Fprintf(out, "Created: %s\n", agent.CreatedAt)
				if agent.ShadowMode {
					fmt.Fprintf(out, "Shadow for %s (stall threshold %dms)\n", agent.ShadowFor, agent.StallThresholdMs)
					if agent.LastPrimaryHeartbeat != "" {
						fmt.Fprintf(out, "Primary last seen: %s\n", agent.LastPrimaryHeartbeat)
					}
					if agent.ActivatedAt != "" {
						fmt.Fprintf(out, "Activated at: %s\n", agent.ActivatedAt)
					}
				}
				return nil
			})
		},
	}
}

func newAgentsRegisterShadowCommand(ctx *commandContext) *cobra.Command {
	var stallThresholdMs int64

	cmd := &cobra.Command{
		Use:   "register-shadow <primary-id> <shadow-id>",
		Short: "Register a dormant shadow for a primary agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				agent, err := access.RegisterShadow(cmd.Context(), args[0], args[1], stallThresholdMs)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, agent)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Shadow %s registered for %s (%dms stall threshold)\n",
					agent.AgentID, agent.ShadowFor, agent.StallThresholdMs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&stallThresholdMs, "stall-threshold-ms", 0, "Primary silence before takeover (default from config)")
	return cmd
}

func newAgentsActivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <shadow-id>",
		Short: "Promote a dormant shadow to active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				agent, err := access.ActivateShadow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, agent)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Shadow %s is now active for %s\n", agent.AgentID, agent.ShadowFor)
				return nil
			})
		},
	}
}

func newAgentsCheckStallsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check-stalls",
		Short: "Sweep shadows and activate any whose primary stalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access coordaccess.Access) error {
				result, err := access.CheckStalls(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if len(result.Activated) == 0 {
					fmt.Fprintf(out, "Checked %d shadows, none activated\n", result.Checked)
					return nil
				}
				fmt.Fprintf(out, "Checked %d shadows, activated: %s\n",
					result.Checked, strings.Join(result.Activated, ", "))
				return nil
			})
		},
	}
}
