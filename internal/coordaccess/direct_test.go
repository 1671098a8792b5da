package coordaccess_test

import (
	"context"
	"testing"

	"roost/internal/api"
	"roost/internal/config"
	"roost/internal/coordaccess"
	"roost/internal/logging"
	"roost/internal/store"
)

func TestDirectAccessWithoutDaemon(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogDir = dir

	access := coordaccess.NewDirectAccess(&cfg, store.NewFallback(), logging.NewNop())
	ctx := context.Background()

	if _, err := access.Claim(ctx, "task-1", "alice", ""); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	list, err := access.ListClaims(ctx, false)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListClaims = %+v err=%v", list, err)
	}

	if _, _, err := access.RecordHeartbeat(ctx, api.HeartbeatRequest{AgentID: "alice", Status: "busy"}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	_, summary, err := access.Heartbeats(ctx)
	if err != nil || summary.Total != 1 {
		t.Fatalf("Heartbeats summary = %+v err=%v", summary, err)
	}

	status, err := access.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Error("direct access reports a running daemon")
	}
	if status.Fleet.Total != 1 {
		t.Errorf("status fleet = %+v", status.Fleet)
	}
}
