package coordaccess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roost/internal/api"
	"roost/internal/claims"
	"roost/internal/coord"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/locks"
	"roost/internal/shadow"
	"roost/internal/zones"
)

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Dial probes the daemon API and returns a client when it responds.
func Dial(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("no api bind address configured")
	}
	c := &Client{
		baseURL: "http://" + bind,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Status(ctx); err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", bind, err)
	}
	return c, nil
}

func (c *Client) Claim(ctx context.Context, what, by, description string) (claims.Claim, error) {
	var resp api.ClaimResponse
	err := c.do(ctx, http.MethodPost, "/api/claims", nil,
		api.ClaimRequest{What: what, By: by, Description: description}, &resp)
	if err != nil {
		return claims.Claim{}, err
	}
	return claims.Claim{What: what, By: resp.By, Description: description, Since: resp.Since}, nil
}

func (c *Client) CheckClaim(ctx context.Context, what string) (claims.Claim, bool, error) {
	var resp api.ClaimResponse
	if err := c.do(ctx, http.MethodGet, "/api/claims", url.Values{"what": {what}}, nil, &resp); err != nil {
		return claims.Claim{}, false, err
	}
	if !resp.Claimed {
		return claims.Claim{}, false, nil
	}
	return claims.Claim{What: what, By: resp.By, Since: resp.Since}, true, nil
}

func (c *Client) ReleaseClaim(ctx context.Context, what, by string) error {
	var resp api.ReleasedResponse
	return c.do(ctx, http.MethodDelete, "/api/claims", url.Values{"what": {what}, "by": {by}}, nil, &resp)
}

func (c *Client) ListClaims(ctx context.Context, includeStale bool) ([]claims.Claim, error) {
	query := url.Values{}
	if includeStale {
		query.Set("includeStale", "true")
	}
	var resp api.ClaimsListResponse
	if err := c.do(ctx, http.MethodGet, "/api/claims", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Claims, nil
}

func (c *Client) AcquireLock(ctx context.Context, resourcePath, lockedBy, reason string) (locks.Lock, error) {
	var resp api.LockResponse
	err := c.do(ctx, http.MethodPost, "/api/locks", nil,
		api.LockRequest{ResourcePath: resourcePath, LockedBy: lockedBy, Reason: reason}, &resp)
	if err != nil {
		return locks.Lock{}, err
	}
	return resp.Lock, nil
}

func (c *Client) CheckLock(ctx context.Context, resourcePath string) (locks.Lock, bool, error) {
	var resp api.LockResponse
	if err := c.do(ctx, http.MethodGet, "/api/locks", url.Values{"resourcePath": {resourcePath}}, nil, &resp); err != nil {
		return locks.Lock{}, false, err
	}
	return resp.Lock, resp.Success, nil
}

func (c *Client) ReleaseLock(ctx context.Context, resourcePath, lockedBy string) error {
	var resp api.ReleasedResponse
	return c.do(ctx, http.MethodDelete, "/api/locks",
		url.Values{"resourcePath": {resourcePath}, "lockedBy": {lockedBy}}, nil, &resp)
}

func (c *Client) ListLocks(ctx context.Context) ([]locks.Lock, error) {
	var resp api.LocksListResponse
	if err := c.do(ctx, http.MethodGet, "/api/locks", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locks, nil
}

func (c *Client) ClaimZone(ctx context.Context, zoneID, path, owner, description string) (zones.Zone, error) {
	var resp api.ZoneResponse
	err := c.do(ctx, http.MethodPost, "/api/zones", nil,
		api.ZoneRequest{ZoneID: zoneID, Path: path, Owner: owner, Description: description}, &resp)
	if err != nil {
		return zones.Zone{}, err
	}
	return resp.Zone, nil
}

func (c *Client) ReleaseZone(ctx context.Context, zoneID, owner string) error {
	var resp api.ReleasedResponse
	return c.do(ctx, http.MethodDelete, "/api/zones",
		url.Values{"zoneId": {zoneID}, "owner": {owner}}, nil, &resp)
}

func (c *Client) ListZones(ctx context.Context, owner string) ([]zones.Zone, error) {
	query := url.Values{}
	if owner != "" {
		query.Set("owner", owner)
	}
	var resp api.ZonesListResponse
	if err := c.do(ctx, http.MethodGet, "/api/zones", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

func (c *Client) RecordHeartbeat(ctx context.Context, req api.HeartbeatRequest) (heartbeat.View, bool, error) {
	var resp api.HeartbeatResponse
	if err := c.do(ctx, http.MethodPost, "/api/heartbeat", nil, req, &resp); err != nil {
		return heartbeat.View{}, false, err
	}
	return resp.Heartbeat, resp.WasOffline, nil
}

func (c *Client) Heartbeat(ctx context.Context, agentID string) (heartbeat.View, bool, error) {
	var view heartbeat.View
	err := c.do(ctx, http.MethodGet, "/api/heartbeat", url.Values{"agentId": {agentID}}, nil, &view)
	if err != nil {
		if errors.Is(err, coord.ErrNotFound) {
			return heartbeat.View{}, false, nil
		}
		return heartbeat.View{}, false, err
	}
	return view, true, nil
}

func (c *Client) Heartbeats(ctx context.Context) ([]heartbeat.View, heartbeat.Summary, error) {
	var resp api.HeartbeatListResponse
	if err := c.do(ctx, http.MethodGet, "/api/heartbeat", nil, nil, &resp); err != nil {
		return nil, heartbeat.Summary{}, err
	}
	return resp.Agents, resp.Summary, nil
}

func (c *Client) RemoveHeartbeat(ctx context.Context, agentID string) error {
	var resp api.SuccessResponse
	return c.do(ctx, http.MethodDelete, "/api/heartbeat", url.Values{"agentId": {agentID}}, nil, &resp)
}

func (c *Client) HeartbeatHistory(ctx context.Context, agentID string) ([]heartbeat.Event, error) {
	var resp api.HeartbeatHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/heartbeat/history", url.Values{"agentId": {agentID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) SpawnAgent(ctx context.Context, agentID, name string) (fleet.Agent, error) {
	var resp api.AgentResponse
	err := c.do(ctx, http.MethodPost, "/api/cloud-agents", nil,
		api.SpawnAgentRequest{AgentID: agentID, Name: name}, &resp)
	if err != nil {
		return fleet.Agent{}, err
	}
	return resp.Agent, nil
}

func (c *Client) Agent(ctx context.Context, agentID string) (fleet.Agent, bool, error) {
	var resp api.AgentResponse
	err := c.do(ctx, http.MethodGet, "/api/cloud-agents", url.Values{"agentId": {agentID}}, nil, &resp)
	if err != nil {
		if errors.Is(err, coord.ErrNotFound) {
			return fleet.Agent{}, false, nil
		}
		return fleet.Agent{}, false, err
	}
	return resp.Agent, true, nil
}

func (c *Client) Agents(ctx context.Context) ([]fleet.Agent, error) {
	var resp api.AgentsListResponse
	if err := c.do(ctx, http.MethodGet, "/api/cloud-agents", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

func (c *Client) RegisterShadow(ctx context.Context, primaryAgentID, shadowAgentID string, stallThresholdMs int64) (fleet.Agent, error) {
	var resp api.AgentResponse
	err := c.do(ctx, http.MethodPatch, "/api/cloud-agent", url.Values{"action": {"register-shadow"}},
		api.RegisterShadowRequest{
			PrimaryAgentID:   primaryAgentID,
			ShadowAgentID:    shadowAgentID,
			StallThresholdMs: stallThresholdMs,
		}, &resp)
	if err != nil {
		return fleet.Agent{}, err
	}
	return resp.Agent, nil
}

func (c *Client) ActivateShadow(ctx context.Context, shadowAgentID string) (fleet.Agent, error) {
	var resp api.AgentResponse
	err := c.do(ctx, http.MethodPatch, "/api/cloud-agent",
		url.Values{"action": {"activate-shadow"}, "agentId": {shadowAgentID}}, nil, &resp)
	if err != nil {
		return fleet.Agent{}, err
	}
	return resp.Agent, nil
}

func (c *Client) PrimaryHeartbeat(ctx context.Context, primaryAgentID string) error {
	var resp api.SuccessResponse
	return c.do(ctx, http.MethodPatch, "/api/cloud-agent",
		url.Values{"action": {"heartbeat"}, "primaryAgentId": {primaryAgentID}}, nil, &resp)
}

func (c *Client) CheckStalls(ctx context.Context) (shadow.SweepResult, error) {
	var resp shadow.SweepResult
	err := c.do(ctx, http.MethodPatch, "/api/cloud-agent",
		url.Values{"action": {"check-stalls"}}, nil, &resp)
	return resp, err
}

func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns an error body back into a tagged coordination error
// so callers can branch on the same sentinels as direct store access.
func decodeAPIError(resp *http.Response) error {
	var body api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = "daemon returned " + strconv.Itoa(resp.StatusCode)
		}
	}

	var marker error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		marker = coord.ErrValidation
	case http.StatusConflict:
		marker = coord.ErrConflict
	case http.StatusNotFound:
		marker = coord.ErrNotFound
	default:
		return errors.New(body.Error)
	}

	if owner := firstNonEmpty(body.ClaimedBy, body.LockedBy, body.Owner); owner != "" && marker == coord.ErrConflict {
		return fmt.Errorf("%w: held by %s", marker, owner)
	}
	return fmt.Errorf("%w: %s", marker, body.Error)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
