// Package shadow promotes dormant standby agents when their primary stops
// heartbeating.
//
// A shadow is bound to exactly one primary. While dormant it does nothing;
// once the primary's heartbeat silence exceeds the bound stall threshold a
// sweep activates it. Activation is a guarded one-shot transition, so
// overlapping or repeated sweeps are harmless.
package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"roost/internal/coord"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/logging"
	"roost/internal/notifications"
	"roost/internal/store"
)

const namespace = "shadow-registry"

// Binding maps a primary agent to its standby.
type Binding struct {
	PrimaryAgentID   string `json:"primaryAgentId"`
	ShadowAgentID    string `json:"shadowAgentId"`
	StallThresholdMs int64  `json:"stallThresholdMs"`
	RegisteredAt     string `json:"registeredAt"`
}

// SweepResult reports one stall-detection pass.
type SweepResult struct {
	Checked   int      `json:"checked"`
	Activated []string `json:"activated"`
}

// Controller owns the shadow registry and drives failover.
type Controller struct {
	store            store.Store
	agents           *fleet.Registry
	heartbeats       *heartbeat.Monitor
	notifier         notifications.Service
	logger           *slog.Logger
	defaultThreshold time.Duration
}

// NewController wires the failover controller to its collaborators.
func NewController(
	s store.Store,
	agents *fleet.Registry,
	heartbeats *heartbeat.Monitor,
	notifier notifications.Service,
	logger *slog.Logger,
	defaultThreshold time.Duration,
) *Controller {
	return &Controller{
		store:            s,
		agents:           agents,
		heartbeats:       heartbeats,
		notifier:         notifier,
		logger:           logging.WithComponent(logger, "shadow"),
		defaultThreshold: defaultThreshold,
	}
}

// RegisterShadow binds a standby to a primary and creates the shadow's
// dormant agent record. The primary is considered live as of registration.
func (c *Controller) RegisterShadow(ctx context.Context, primaryAgentID, shadowAgentID string, stallThresholdMs int64) (fleet.Agent, error) {
	if primaryAgentID == "" {
		return fleet.Agent{}, coord.Validationf("shadow registration requires a primary agent id")
	}
	if shadowAgentID == "" {
		return fleet.Agent{}, coord.Validationf("shadow registration requires a shadow agent id")
	}
	if shadowAgentID == primaryAgentID {
		return fleet.Agent{}, coord.Validationf("an agent cannot shadow itself")
	}
	if stallThresholdMs <= 0 {
		stallThresholdMs = c.defaultThreshold.Milliseconds()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	binding := Binding{
		PrimaryAgentID:   primaryAgentID,
		ShadowAgentID:    shadowAgentID,
		StallThresholdMs: stallThresholdMs,
		RegisteredAt:     now,
	}
	payload, err := json.Marshal(binding)
	if err != nil {
		return fleet.Agent{}, coord.Wrap(nil, "shadow", "register", "encode binding", err)
	}
	if err := c.store.HSet(ctx, namespace, primaryAgentID, string(payload)); err != nil {
		return fleet.Agent{}, coord.Wrap(nil, "shadow", "register", "write binding", err)
	}

	agent := fleet.Agent{
		AgentID:              shadowAgentID,
		Status:               fleet.StateShadowDormant,
		CreatedAt:            now,
		ShadowMode:           true,
		ShadowFor:            primaryAgentID,
		StallThresholdMs:     stallThresholdMs,
		LastPrimaryHeartbeat: now,
	}
	if err := c.agents.Put(ctx, agent); err != nil {
		return fleet.Agent{}, err
	}

	c.logger.Info("shadow registered",
		logging.String(logging.FieldAgent, shadowAgentID),
		logging.String("primary", primaryAgentID),
		logging.Int64("stall_threshold_ms", stallThresholdMs),
	)
	return agent, nil
}

// ShadowFor returns the binding for a primary, if any.
func (c *Controller) ShadowFor(ctx context.Context, primaryAgentID string) (Binding, bool, error) {
	if primaryAgentID == "" {
		return Binding{}, false, coord.Validationf("lookup requires a primary agent id")
	}
	value, ok, err := c.store.HGet(ctx, namespace, primaryAgentID)
	if err != nil {
		return Binding{}, false, coord.Wrap(nil, "shadow", "lookup", "read binding", err)
	}
	if !ok {
		return Binding{}, false, nil
	}
	var binding Binding
	if err := json.Unmarshal([]byte(value), &binding); err != nil {
		c.logger.Warn("malformed shadow binding, treating as unbound",
			logging.String("primary", primaryAgentID),
			logging.Error(err),
		)
		return Binding{}, false, nil
	}
	return binding, true, nil
}

// RecordPrimaryHeartbeat refreshes the primary's heartbeat and, when a
// shadow is bound, mirrors the timestamp into the shadow's record so sweeps
// can read it without an extra heartbeat lookup.
func (c *Controller) RecordPrimaryHeartbeat(ctx context.Context, primaryAgentID string) error {
	if primaryAgentID == "" {
		return coord.Validationf("heartbeat requires a primary agent id")
	}
	if _, _, err := c.heartbeats.Record(ctx, heartbeat.Heartbeat{AgentID: primaryAgentID, Status: "active"}); err != nil {
		return err
	}

	binding, ok, err := c.ShadowFor(ctx, primaryAgentID)
	if err != nil || !ok {
		return err
	}
	agent, ok, err := c.agents.Get(ctx, binding.ShadowAgentID)
	if err != nil || !ok {
		return err
	}
	agent.LastPrimaryHeartbeat = time.Now().UTC().Format(time.RFC3339)
	return c.agents.Put(ctx, agent)
}

// Activate promotes a dormant shadow. It fails with a validation error if
// the target is not a shadow, and with an illegal-transition error if it is
// already active, so redundant calls are detectable but harmless.
func (c *Controller) Activate(ctx context.Context, shadowAgentID string) (fleet.Agent, error) {
	if shadowAgentID == "" {
		return fleet.Agent{}, coord.Validationf("activation requires a shadow agent id")
	}
	agent, ok, err := c.agents.Get(ctx, shadowAgentID)
	if err != nil {
		return fleet.Agent{}, err
	}
	if !ok {
		return fleet.Agent{}, coord.Wrap(coord.ErrNotFound, "shadow", "activate", fmt.Sprintf("unknown agent %q", shadowAgentID), nil)
	}
	if !agent.ShadowMode {
		return fleet.Agent{}, coord.Validationf("agent %q is not a shadow", shadowAgentID)
	}
	if agent.Status == fleet.StateShadowActive {
		return fleet.Agent{}, coord.Wrap(coord.ErrIllegalTransition, "shadow", "activate",
			fmt.Sprintf("shadow %q is already active", shadowAgentID), nil)
	}

	silence := c.primarySilence(ctx, agent)

	activated, err := c.agents.Transition(ctx, shadowAgentID, fleet.StateShadowActive)
	if err != nil {
		return fleet.Agent{}, err
	}

	c.logger.Warn("shadow activated",
		logging.String(logging.FieldAgent, shadowAgentID),
		logging.String("primary", agent.ShadowFor),
		logging.Duration("silence", silence),
		logging.String(logging.FieldEventType, "shadow_activated"),
	)
	if err := c.notifier.NotifyShadowActivated(ctx, agent.ShadowFor, shadowAgentID, silence); err != nil {
		c.logger.Warn("shadow activation notification failed", logging.Error(err))
	}
	return activated, nil
}

// Sweep checks every dormant shadow against its primary's heartbeat and
// activates the stalled ones. A primary that has never heartbeated counts
// as stalled immediately. Safe to run concurrently or back-to-back.
func (c *Controller) Sweep(ctx context.Context) (SweepResult, error) {
	agents, err := c.agents.List(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Activated: []string{}}
	now := time.Now()
	for _, agent := range agents {
		if !agent.ShadowMode || agent.Status != fleet.StateShadowDormant {
			continue
		}
		result.Checked++

		threshold := time.Duration(agent.StallThresholdMs) * time.Millisecond
		if threshold <= 0 {
			threshold = c.defaultThreshold
		}

		silence, known := c.primaryLastSeen(ctx, agent, now)
		if known && silence <= threshold {
			continue
		}

		if _, err := c.Activate(ctx, agent.AgentID); err != nil {
			// A concurrent sweep may have won the activation.
			if coord.HTTPStatus(err) < 500 {
				c.logger.Debug("sweep skipped shadow",
					logging.String(logging.FieldAgent, agent.AgentID),
					logging.Error(err),
				)
				continue
			}
			return result, err
		}
		result.Activated = append(result.Activated, agent.AgentID)
	}

	if result.Checked > 0 || len(result.Activated) > 0 {
		c.logger.Info("stall sweep finished",
			logging.Int("checked", result.Checked),
			logging.Int("activated", len(result.Activated)),
		)
	}
	return result, nil
}

// primaryLastSeen reports how long the primary has been silent. The live
// heartbeat wins; the shadow's cached timestamp is the fallback. known is
// false when the primary has never been seen at all.
func (c *Controller) primaryLastSeen(ctx context.Context, agent fleet.Agent, now time.Time) (time.Duration, bool) {
	if ts, ok, err := c.heartbeats.LastSeen(ctx, agent.ShadowFor); err == nil && ok {
		return now.Sub(ts), true
	}
	if agent.LastPrimaryHeartbeat != "" {
		if ts, err := time.Parse(time.RFC3339, agent.LastPrimaryHeartbeat); err == nil {
			return now.Sub(ts), true
		}
	}
	return 0, false
}

func (c *Controller) primarySilence(ctx context.Context, agent fleet.Agent) time.Duration {
	silence, known := c.primaryLastSeen(ctx, agent, time.Now())
	if !known {
		return 0
	}
	return silence
}
