// Package coordaccess gives the CLI one interface over two transports:
// the daemon's HTTP API when it is running, direct store access when not.
package coordaccess

import (
	"context"

	"roost/internal/api"
	"roost/internal/claims"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/locks"
	"roost/internal/shadow"
	"roost/internal/zones"
)

// Access provides coordination operations regardless of HTTP or direct
// store backing.
type Access interface {
	Claim(ctx context.Context, what, by, description string) (claims.Claim, error)
	CheckClaim(ctx context.Context, what string) (claims.Claim, bool, error)
	ReleaseClaim(ctx context.Context, what, by string) error
	ListClaims(ctx context.Context, includeStale bool) ([]claims.Claim, error)

	AcquireLock(ctx context.Context, resourcePath, lockedBy, reason string) (locks.Lock, error)
	CheckLock(ctx context.Context, resourcePath string) (locks.Lock, bool, error)
	ReleaseLock(ctx context.Context, resourcePath, lockedBy string) error
	ListLocks(ctx context.Context) ([]locks.Lock, error)

	ClaimZone(ctx context.Context, zoneID, path, owner, description string) (zones.Zone, error)
	ReleaseZone(ctx context.Context, zoneID, owner string) error
	ListZones(ctx context.Context, owner string) ([]zones.Zone, error)

	RecordHeartbeat(ctx context.Context, req api.HeartbeatRequest) (heartbeat.View, bool, error)
	Heartbeat(ctx context.Context, agentID string) (heartbeat.View, bool, error)
	Heartbeats(ctx context.Context) ([]heartbeat.View, heartbeat.Summary, error)
	RemoveHeartbeat(ctx context.Context, agentID string) error
	HeartbeatHistory(ctx context.Context, agentID string) ([]heartbeat.Event, error)

	SpawnAgent(ctx context.Context, agentID, name string) (fleet.Agent, error)
	Agent(ctx context.Context, agentID string) (fleet.Agent, bool, error)
	Agents(ctx context.Context) ([]fleet.Agent, error)

	RegisterShadow(ctx context.Context, primaryAgentID, shadowAgentID string, stallThresholdMs int64) (fleet.Agent, error)
	ActivateShadow(ctx context.Context, shadowAgentID string) (fleet.Agent, error)
	PrimaryHeartbeat(ctx context.Context, primaryAgentID string) error
	CheckStalls(ctx context.Context) (shadow.SweepResult, error)

	Status(ctx context.Context) (api.DaemonStatus, error)
}
