package coordaccess

import (
	"context"
	"log/slog"
	"time"

	"roost/internal/api"
	"roost/internal/claims"
	"roost/internal/config"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/locks"
	"roost/internal/notifications"
	"roost/internal/shadow"
	"roost/internal/store"
	"roost/internal/zones"
)

// directAccess operates on the coordination store without a daemon. Used
// when the daemon is not running; sweeps still work but nothing runs them
// periodically.
type directAccess struct {
	cfg        *config.Config
	claims     *claims.Registry
	locks      *locks.Manager
	zones      *zones.Registry
	heartbeats *heartbeat.Monitor
	agents     *fleet.Registry
	shadows    *shadow.Controller
}

// NewDirectAccess builds an Access over an already-open store.
func NewDirectAccess(cfg *config.Config, backend store.Store, logger *slog.Logger) Access {
	notifier := notifications.NewService(cfg)
	heartbeats := heartbeat.NewMonitor(
		backend,
		logger,
		time.Duration(cfg.Coordination.HeartbeatTTLSeconds)*time.Second,
		cfg.Coordination.HistoryLimit,
	)
	agents := fleet.NewRegistry(backend, logger)
	return &directAccess{
		cfg:        cfg,
		claims:     claims.NewRegistry(backend, logger, time.Duration(cfg.Coordination.ClaimStaleSeconds)*time.Second),
		locks:      locks.NewManager(backend, logger),
		zones:      zones.NewRegistry(backend, logger),
		heartbeats: heartbeats,
		agents:     agents,
		shadows: shadow.NewController(
			backend,
			agents,
			heartbeats,
			notifier,
			logger,
			time.Duration(cfg.Coordination.StallThresholdMs)*time.Millisecond,
		),
	}
}

func (a *directAccess) Claim(ctx context.Context, what, by, description string) (claims.Claim, error) {
	return a.claims.Claim(ctx, what, by, description)
}

func (a *directAccess) CheckClaim(ctx context.Context, what string) (claims.Claim, bool, error) {
	return a.claims.Check(ctx, what)
}

func (a *directAccess) ReleaseClaim(ctx context.Context, what, by string) error {
	return a.claims.Release(ctx, what, by)
}

func (a *directAccess) ListClaims(ctx context.Context, includeStale bool) ([]claims.Claim, error) {
	return a.claims.List(ctx, includeStale)
}

func (a *directAccess) AcquireLock(ctx context.Context, resourcePath, lockedBy, reason string) (locks.Lock, error) {
	return a.locks.Acquire(ctx, resourcePath, lockedBy, reason)
}

func (a *directAccess) CheckLock(ctx context.Context, resourcePath string) (locks.Lock, bool, error) {
	return a.locks.Check(ctx, resourcePath)
}

func (a *directAccess) ReleaseLock(ctx context.Context, resourcePath, lockedBy string) error {
	return a.locks.Release(ctx, resourcePath, lockedBy)
}

func (a *directAccess) ListLocks(ctx context.Context) ([]locks.Lock, error) {
	return a.locks.List(ctx)
}

func (a *directAccess) ClaimZone(ctx context.Context, zoneID, path, owner, description string) (zones.Zone, error) {
	return a.zones.Claim(ctx, zoneID, path, owner, description)
}

func (a *directAccess) ReleaseZone(ctx context.Context, zoneID, owner string) error {
	return a.zones.Release(ctx, zoneID, owner)
}

func (a *directAccess) ListZones(ctx context.Context, owner string) ([]zones.Zone, error) {
	if owner == "" {
		return a.zones.List(ctx)
	}
	return a.zones.ZonesFor(ctx, owner)
}

func (a *directAccess) RecordHeartbeat(ctx context.Context, req api.HeartbeatRequest) (heartbeat.View, bool, error) {
	return a.heartbeats.Record(ctx, heartbeat.Heartbeat{
		AgentID:       req.AgentID,
		Status:        req.Status,
		SessionHealth: req.SessionHealth,
		ErrorCount:    req.ErrorCount,
		Metadata:      req.Metadata,
	})
}

func (a *directAccess) Heartbeat(ctx context.Context, agentID string) (heartbeat.View, bool, error) {
	return a.heartbeats.Get(ctx, agentID)
}

func (a *directAccess) Heartbeats(ctx context.Context) ([]heartbeat.View, heartbeat.Summary, error) {
	return a.heartbeats.All(ctx)
}

func (a *directAccess) RemoveHeartbeat(ctx context.Context, agentID string) error {
	return a.heartbeats.Remove(ctx, agentID)
}

func (a *directAccess) HeartbeatHistory(ctx context.Context, agentID string) ([]heartbeat.Event, error) {
	return a.heartbeats.History(ctx, agentID)
}

func (a *directAccess) SpawnAgent(ctx context.Context, agentID, name string) (fleet.Agent, error) {
	return a.agents.Spawn(ctx, agentID, name)
}

func (a *directAccess) Agent(ctx context.Context, agentID string) (fleet.Agent, bool, error) {
	return a.agents.Get(ctx, agentID)
}

func (a *directAccess) Agents(ctx context.Context) ([]fleet.Agent, error) {
	return a.agents.List(ctx)
}

func (a *directAccess) RegisterShadow(ctx context.Context, primaryAgentID, shadowAgentID string, stallThresholdMs int64) (fleet.Agent, error) {
	return a.shadows.RegisterShadow(ctx, primaryAgentID, shadowAgentID, stallThresholdMs)
}

func (a *directAccess) ActivateShadow(ctx context.Context, shadowAgentID string) (fleet.Agent, error) {
	return a.shadows.Activate(ctx, shadowAgentID)
}

func (a *directAccess) PrimaryHeartbeat(ctx context.Context, primaryAgentID string) error {
	return a.shadows.RecordPrimaryHeartbeat(ctx, primaryAgentID)
}

func (a *directAccess) CheckStalls(ctx context.Context) (shadow.SweepResult, error) {
	return a.shadows.Sweep(ctx)
}

func (a *directAccess) Status(ctx context.Context) (api.DaemonStatus, error) {
	_, summary, err := a.heartbeats.All(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:      false,
		DatabasePath: a.cfg.DatabasePath(),
		Fleet:        summary,
	}, nil
}
