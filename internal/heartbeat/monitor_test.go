package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

const testTTL = 300 * time.Second

func newTestMonitor(t *testing.T) (*Monitor, *store.Fallback) {
	t.Helper()
	backend := store.NewFallback()
	return NewMonitor(backend, logging.NewNop(), testTTL, 50), backend
}

func seedHeartbeat(t *testing.T, backend *store.Fallback, agentID string, age time.Duration) {
	t.Helper()
	hb := Heartbeat{
		AgentID:   agentID,
		Status:    "active",
		Timestamp: time.Now().Add(-age).UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(hb)
	if err != nil {
		t.Fatalf("marshal heartbeat: %v", err)
	}
	if err := backend.HSet(context.Background(), "heartbeats", agentID, string(payload)); err != nil {
		t.Fatalf("seed heartbeat: %v", err)
	}
}

func TestRecordFirstBeatIsOnlineEvent(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	view, wasOffline, err := m.Record(ctx, Heartbeat{AgentID: "alice", Status: "active"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !wasOffline {
		t.Error("first beat should report wasOffline")
	}
	if !view.Online || view.SecondsSinceHeartbeat > 1 {
		t.Errorf("view = %+v", view)
	}

	events, err := m.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventOnline {
		t.Errorf("history = %+v", events)
	}
	if events[0].ID == "" {
		t.Error("event has no id")
	}
}

func TestRecordAfterOutageIsRecovery(t *testing.T) {
	m, backend := newTestMonitor(t)
	ctx := context.Background()

	seedHeartbeat(t, backend, "alice", 10*time.Minute)

	_, wasOffline, err := m.Record(ctx, Heartbeat{AgentID: "alice", Status: "active"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !wasOffline {
		t.Error("beat after outage should report wasOffline")
	}
	events, _ := m.History(ctx, "alice")
	if len(events) != 1 || events[0].Type != EventRecovery {
		t.Errorf("history = %+v", events)
	}

	// A prompt follow-up beat is not a transition.
	_, wasOffline, err = m.Record(ctx, Heartbeat{AgentID: "alice", Status: "busy"})
	if err != nil || wasOffline {
		t.Fatalf("follow-up = wasOffline=%v err=%v", wasOffline, err)
	}
	events, _ = m.History(ctx, "alice")
	if len(events) != 1 {
		t.Errorf("follow-up beat appended an event: %+v", events)
	}
}

func TestOnlineIsDerivedFromTTL(t *testing.T) {
	m, backend := newTestMonitor(t)
	ctx := context.Background()

	seedHeartbeat(t, backend, "stale", 301*time.Second)
	seedHeartbeat(t, backend, "fresh", 299*time.Second)

	staleView, ok, err := m.Get(ctx, "stale")
	if err != nil || !ok {
		t.Fatalf("Get stale = ok=%v err=%v", ok, err)
	}
	if staleView.Online {
		t.Error("301s old heartbeat reports online")
	}
	if staleView.SecondsSinceHeartbeat < 300 || staleView.SecondsSinceHeartbeat > 302 {
		t.Errorf("stale seconds = %d", staleView.SecondsSinceHeartbeat)
	}

	freshView, ok, err := m.Get(ctx, "fresh")
	if err != nil || !ok {
		t.Fatalf("Get fresh = ok=%v err=%v", ok, err)
	}
	if !freshView.Online {
		t.Error("299s old heartbeat reports offline")
	}
}

func TestAllSummary(t *testing.T) {
	m, backend := newTestMonitor(t)
	ctx := context.Background()

	seedHeartbeat(t, backend, "alice", time.Second)
	seedHeartbeat(t, backend, "bob", 10*time.Minute)
	if err := backend.HSet(ctx, "heartbeats", "broken", "{oops"); err != nil {
		t.Fatalf("HSet: %v", err)
	}

	views, summary, err := m.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %+v", views)
	}
	if views[0].AgentID != "alice" || views[1].AgentID != "bob" {
		t.Errorf("views not sorted: %+v", views)
	}
	if summary.Total != 2 || summary.Online != 1 || summary.Offline != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.StaleThresholdSeconds != 300 {
		t.Errorf("threshold = %d", summary.StaleThresholdSeconds)
	}
}

func TestRemoveRecordsOfflineEvent(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	if _, _, err := m.Record(ctx, Heartbeat{AgentID: "alice"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.Remove(ctx, "alice"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "alice"); ok {
		t.Error("heartbeat still present after Remove")
	}
	events, _ := m.History(ctx, "alice")
	if len(events) != 2 || events[1].Type != EventOffline {
		t.Errorf("history = %+v", events)
	}

	if err := m.Remove(ctx, "alice"); !errors.Is(err, coord.ErrNotFound) {
		t.Errorf("double remove = %v, want not found", err)
	}
}

func TestHistoryRingIsBounded(t *testing.T) {
	m, backend := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		seedHeartbeat(t, backend, "alice", 10*time.Minute)
		if _, _, err := m.Record(ctx, Heartbeat{AgentID: "alice"}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	events, err := m.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 50 {
		t.Errorf("history len = %d, want 50", len(events))
	}
}

func TestStatusValidation(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	if _, _, err := m.Record(ctx, Heartbeat{AgentID: "alice", Status: "sleeping"}); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("bad status = %v", err)
	}
	if _, _, err := m.Record(ctx, Heartbeat{Status: "active"}); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("missing agent = %v", err)
	}

	for _, status := range []string{"active", "idle", "busy", "error"} {
		agent := fmt.Sprintf("agent-%s", status)
		if _, _, err := m.Record(ctx, Heartbeat{AgentID: agent, Status: status}); err != nil {
			t.Errorf("status %s rejected: %v", status, err)
		}
	}
}

func TestLastSeen(t *testing.T) {
	m, backend := newTestMonitor(t)
	ctx := context.Background()

	if _, ok, err := m.LastSeen(ctx, "alice"); err != nil || ok {
		t.Fatalf("LastSeen missing = ok=%v err=%v", ok, err)
	}

	seedHeartbeat(t, backend, "alice", 2*time.Minute)
	ts, ok, err := m.LastSeen(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("LastSeen = ok=%v err=%v", ok, err)
	}
	age := time.Since(ts)
	if age < time.Minute || age > 3*time.Minute {
		t.Errorf("LastSeen age = %v", age)
	}
}
