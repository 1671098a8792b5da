package api

import (
	"roost/internal/claims"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/locks"
	"roost/internal/shadow"
	"roost/internal/zones"
)

// ErrorResponse is the 4xx/5xx body. On ownership conflicts the holder is
// included so callers can report who to coordinate with; claim conflicts
// also carry the blocking claim's timestamp so callers can judge staleness.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	ClaimedBy string `json:"claimedBy,omitempty"`
	Since     string `json:"since,omitempty"`
	LockedBy  string `json:"lockedBy,omitempty"`
	Owner     string `json:"owner,omitempty"`
}

// ClaimRequest is the POST /api/claims body.
type ClaimRequest struct {
	What        string `json:"what"`
	By          string `json:"by"`
	Description string `json:"description,omitempty"`
}

// ClaimResponse reports a successful claim.
type ClaimResponse struct {
	Claimed bool   `json:"claimed"`
	By      string `json:"by"`
	Since   string `json:"since"`
}

// ClaimsListResponse is the GET /api/claims body.
type ClaimsListResponse struct {
	Claims []claims.Claim `json:"claims"`
	Count  int            `json:"count"`
}

// ReleasedResponse reports a successful claim or lock release.
type ReleasedResponse struct {
	Released bool `json:"released"`
}

// LockRequest is the POST /api/locks body.
type LockRequest struct {
	ResourcePath string `json:"resourcePath"`
	LockedBy     string `json:"lockedBy"`
	Reason       string `json:"reason,omitempty"`
}

// LockResponse reports a successful lock acquisition.
type LockResponse struct {
	Success bool       `json:"success"`
	Lock    locks.Lock `json:"lock"`
}

// LocksListResponse is the GET /api/locks body.
type LocksListResponse struct {
	Locks []locks.Lock `json:"locks"`
	Count int          `json:"count"`
}

// ZoneRequest is the POST /api/zones body.
type ZoneRequest struct {
	ZoneID      string `json:"zoneId"`
	Path        string `json:"path"`
	Owner       string `json:"owner"`
	Description string `json:"description,omitempty"`
}

// ZoneResponse reports a successful zone claim.
type ZoneResponse struct {
	Success bool       `json:"success"`
	Zone    zones.Zone `json:"zone"`
}

// ZonesListResponse is the GET /api/zones body.
type ZonesListResponse struct {
	Zones []zones.Zone `json:"zones"`
	Count int          `json:"count"`
}

// HeartbeatRequest is the POST /api/heartbeat body.
type HeartbeatRequest struct {
	AgentID       string         `json:"agentId"`
	Status        string         `json:"status,omitempty"`
	SessionHealth string         `json:"sessionHealth,omitempty"`
	ErrorCount    int            `json:"errorCount,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// HeartbeatResponse reports a recorded heartbeat.
type HeartbeatResponse struct {
	Success    bool           `json:"success"`
	Heartbeat  heartbeat.View `json:"heartbeat"`
	WasOffline bool           `json:"wasOffline"`
}

// HeartbeatListResponse is the GET /api/heartbeat body for the whole fleet.
type HeartbeatListResponse struct {
	Agents  []heartbeat.View  `json:"agents"`
	Summary heartbeat.Summary `json:"summary"`
}

// HeartbeatHistoryResponse carries one agent's transition events.
type HeartbeatHistoryResponse struct {
	Events []heartbeat.Event `json:"events"`
}

// SuccessResponse is a bare success acknowledgement.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SpawnAgentRequest is the POST /api/cloud-agents body.
type SpawnAgentRequest struct {
	AgentID string `json:"agentId,omitempty"`
	Name    string `json:"name,omitempty"`
}

// AgentResponse reports one cloud-agent record.
type AgentResponse struct {
	Success bool        `json:"success"`
	Agent   fleet.Agent `json:"agent"`
}

// AgentsListResponse is the GET /api/cloud-agents body.
type AgentsListResponse struct {
	Agents []fleet.Agent `json:"agents"`
	Count  int           `json:"count"`
}

// RegisterShadowRequest is the PATCH /api/cloud-agent?action=register-shadow body.
type RegisterShadowRequest struct {
	PrimaryAgentID   string `json:"primaryAgentId"`
	ShadowAgentID    string `json:"shadowAgentId"`
	StallThresholdMs int64  `json:"stallThresholdMs,omitempty"`
}

// CheckStallsResponse is the PATCH /api/cloud-agent?action=check-stalls body.
type CheckStallsResponse = shadow.SweepResult

// DaemonStatus is the GET /api/status body.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	DatabasePath string            `json:"databasePath"`
	LockFilePath string            `json:"lockFilePath"`
	Degraded     bool              `json:"degraded"`
	Fleet        heartbeat.Summary `json:"fleet"`
}
