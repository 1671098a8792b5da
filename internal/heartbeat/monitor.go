// Package heartbeat tracks per-agent liveness.
//
// Agents post heartbeats; liveness is always derived at read time from the
// last timestamp and the configured TTL, never stored. Each agent also gets
// a bounded ring of liveness transition events.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

const namespace = "heartbeats"

// Event types recorded in an agent's history ring.
const (
	EventOnline   = "online"
	EventRecovery = "recovery"
	EventOffline  = "offline"
)

var validStatuses = map[string]bool{
	"active": true,
	"idle":   true,
	"busy":   true,
	"error":  true,
}

// Heartbeat is the latest liveness report from one agent.
type Heartbeat struct {
	AgentID       string         `json:"agentId"`
	Status        string         `json:"status"`
	SessionHealth string         `json:"sessionHealth,omitempty"`
	ErrorCount    int            `json:"errorCount,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     string         `json:"timestamp"`
}

// Event is one liveness transition in an agent's history.
type Event struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// View is a heartbeat with liveness derived at read time.
type View struct {
	Heartbeat
	Online                bool  `json:"online"`
	SecondsSinceHeartbeat int64 `json:"secondsSinceHeartbeat"`
}

// Summary aggregates fleet liveness.
type Summary struct {
	Total                 int   `json:"total"`
	Online                int   `json:"online"`
	Offline               int   `json:"offline"`
	StaleThresholdSeconds int64 `json:"staleThresholdSeconds"`
}

// Monitor owns the heartbeat namespace and per-agent history rings.
type Monitor struct {
	store        store.Store
	logger       *slog.Logger
	ttl          time.Duration
	historyLimit int64
}

// NewMonitor builds a heartbeat monitor. Agents silent for longer than ttl
// report offline; each agent keeps at most historyLimit transition events.
func NewMonitor(s store.Store, logger *slog.Logger, ttl time.Duration, historyLimit int) *Monitor {
	return &Monitor{
		store:        s,
		logger:       logging.WithComponent(logger, "heartbeat"),
		ttl:          ttl,
		historyLimit: int64(historyLimit),
	}
}

// TTL returns the liveness window.
func (m *Monitor) TTL() time.Duration { return m.ttl }

// Record overwrites the agent's heartbeat. It reports whether the agent was
// offline before this beat; first-ever and post-outage beats append an
// online or recovery event to the agent's history.
func (m *Monitor) Record(ctx context.Context, hb Heartbeat) (View, bool, error) {
	if hb.AgentID == "" {
		return View{}, false, coord.Validationf("heartbeat requires an agent id")
	}
	if hb.Status == "" {
		hb.Status = "active"
	}
	if !validStatuses[hb.Status] {
		return View{}, false, coord.Validationf("unknown heartbeat status %q", hb.Status)
	}

	now := time.Now()
	prior, hadPrior, err := m.load(ctx, hb.AgentID)
	if err != nil {
		return View{}, false, err
	}

	wasOffline := !hadPrior
	if hadPrior {
		wasOffline = !m.online(prior, now)
	}

	hb.Timestamp = now.UTC().Format(time.RFC3339)
	if err := m.save(ctx, hb); err != nil {
		return View{}, false, err
	}

	if wasOffline {
		eventType := EventOnline
		if hadPrior {
			eventType = EventRecovery
		}
		if err := m.appendEvent(ctx, hb.AgentID, eventType, now); err != nil {
			return View{}, false, err
		}
		m.logger.Info("agent came online",
			logging.String(logging.FieldAgent, hb.AgentID),
			logging.String(logging.FieldEventType, eventType),
		)
	}

	return m.view(hb, now), wasOffline, nil
}

// Get returns one agent's heartbeat with derived liveness.
func (m *Monitor) Get(ctx context.Context, agentID string) (View, bool, error) {
	if agentID == "" {
		return View{}, false, coord.Validationf("get requires an agent id")
	}
	hb, ok, err := m.load(ctx, agentID)
	if err != nil || !ok {
		return View{}, false, err
	}
	return m.view(hb, time.Now()), true, nil
}

// All returns every agent's heartbeat, sorted by agent id, plus a fleet
// summary.
func (m *Monitor) All(ctx context.Context) ([]View, Summary, error) {
	raw, err := m.store.HGetAll(ctx, namespace)
	if err != nil {
		return nil, Summary{}, coord.Wrap(nil, "heartbeat", "all", "read heartbeats", err)
	}

	now := time.Now()
	summary := Summary{StaleThresholdSeconds: int64(m.ttl.Seconds())}
	views := make([]View, 0, len(raw))
	for field, value := range raw {
		var hb Heartbeat
		if err := json.Unmarshal([]byte(value), &hb); err != nil {
			m.logger.Warn("skipping malformed heartbeat record",
				logging.String(logging.FieldAgent, field),
				logging.Error(err),
			)
			continue
		}
		view := m.view(hb, now)
		summary.Total++
		if view.Online {
			summary.Online++
		} else {
			summary.Offline++
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].AgentID < views[j].AgentID })
	return views, summary, nil
}

// Remove deletes an agent's heartbeat and records an offline event. This is
// the graceful shutdown path, distinct from going stale.
func (m *Monitor) Remove(ctx context.Context, agentID string) error {
	if agentID == "" {
		return coord.Validationf("remove requires an agent id")
	}
	removed, err := m.store.HDel(ctx, namespace, agentID)
	if err != nil {
		return coord.Wrap(nil, "heartbeat", "remove", "delete heartbeat", err)
	}
	if !removed {
		return coord.Wrap(coord.ErrNotFound, "heartbeat", "remove", fmt.Sprintf("no heartbeat for %q", agentID), nil)
	}
	if err := m.appendEvent(ctx, agentID, EventOffline, time.Now()); err != nil {
		return err
	}
	m.logger.Info("agent went offline",
		logging.String(logging.FieldAgent, agentID),
		logging.String(logging.FieldEventType, EventOffline),
	)
	return nil
}

// History returns the agent's transition events, oldest first.
func (m *Monitor) History(ctx context.Context, agentID string) ([]Event, error) {
	if agentID == "" {
		return nil, coord.Validationf("history requires an agent id")
	}
	raw, err := m.store.LRange(ctx, historyKey(agentID), 0, -1)
	if err != nil {
		return nil, coord.Wrap(nil, "heartbeat", "history", "read history", err)
	}
	events := make([]Event, 0, len(raw))
	for _, value := range raw {
		var event Event
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			m.logger.Warn("skipping malformed history event",
				logging.String(logging.FieldAgent, agentID),
				logging.Error(err),
			)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// LastSeen returns the timestamp of the agent's most recent heartbeat.
func (m *Monitor) LastSeen(ctx context.Context, agentID string) (time.Time, bool, error) {
	hb, ok, err := m.load(ctx, agentID)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339, hb.Timestamp)
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

func (m *Monitor) view(hb Heartbeat, now time.Time) View {
	view := View{Heartbeat: hb}
	ts, err := time.Parse(time.RFC3339, hb.Timestamp)
	if err != nil {
		// Unreadable timestamps report as maximally stale.
		view.SecondsSinceHeartbeat = int64(m.ttl.Seconds()) + 1
		return view
	}
	elapsed := now.Sub(ts)
	view.SecondsSinceHeartbeat = int64(elapsed.Seconds())
	view.Online = elapsed <= m.ttl
	return view
}

func (m *Monitor) online(hb Heartbeat, now time.Time) bool {
	ts, err := time.Parse(time.RFC3339, hb.Timestamp)
	if err != nil {
		return false
	}
	return now.Sub(ts) <= m.ttl
}

func (m *Monitor) load(ctx context.Context, agentID string) (Heartbeat, bool, error) {
	value, ok, err := m.store.HGet(ctx, namespace, agentID)
	if err != nil {
		return Heartbeat{}, false, coord.Wrap(nil, "heartbeat", "load", "read heartbeat", err)
	}
	if !ok {
		return Heartbeat{}, false, nil
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(value), &hb); err != nil {
		m.logger.Warn("malformed heartbeat record, treating as absent",
			logging.String(logging.FieldAgent, agentID),
			logging.Error(err),
		)
		return Heartbeat{}, false, nil
	}
	return hb, true, nil
}

func (m *Monitor) save(ctx context.Context, hb Heartbeat) error {
	payload, err := json.Marshal(hb)
	if err != nil {
		return coord.Wrap(nil, "heartbeat", "save", "encode heartbeat", err)
	}
	if err := m.store.HSet(ctx, namespace, hb.AgentID, string(payload)); err != nil {
		return coord.Wrap(nil, "heartbeat", "save", "write heartbeat", err)
	}
	return nil
}

func (m *Monitor) appendEvent(ctx context.Context, agentID, eventType string, now time.Time) error {
	event := Event{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Type:      eventType,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return coord.Wrap(nil, "heartbeat", "event", "encode event", err)
	}
	key := historyKey(agentID)
	if err := m.store.RPush(ctx, key, string(payload)); err != nil {
		return coord.Wrap(nil, "heartbeat", "event", "append event", err)
	}
	if err := m.store.LTrim(ctx, key, -m.historyLimit, -1); err != nil {
		return coord.Wrap(nil, "heartbeat", "event", "trim history", err)
	}
	return nil
}

func historyKey(agentID string) string {
	return namespace + ":history:" + agentID
}
