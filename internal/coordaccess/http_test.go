package coordaccess_test

import (
	"context"
	"errors"
	"testing"

	"roost/internal/config"
	"roost/internal/coord"
	"roost/internal/coordaccess"
	"roost/internal/daemon"
	"roost/internal/fleet"
	"roost/internal/logging"
	"roost/internal/store"
)

func startDaemon(t *testing.T) *coordaccess.Client {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogDir = dir
	cfg.Paths.APIBind = "127.0.0.1:0"

	d, err := daemon.New(&cfg, store.NewFallback(), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	srv := daemon.NewAPIServer(&cfg, d, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("api start: %v", err)
	}

	client, err := coordaccess.Dial(srv.Addr(), "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return client
}

func TestClientClaimRoundTrip(t *testing.T) {
	client := startDaemon(t)
	ctx := context.Background()

	claim, err := client.Claim(ctx, "auth-refactor", "alice", "token flow")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claim.By != "alice" || claim.Since == "" {
		t.Errorf("claim = %+v", claim)
	}

	_, err = client.Claim(ctx, "auth-refactor", "bob", "")
	if !errors.Is(err, coord.ErrConflict) {
		t.Errorf("conflict over HTTP = %v, want coord.ErrConflict", err)
	}

	got, ok, err := client.CheckClaim(ctx, "auth-refactor")
	if err != nil || !ok || got.By != "alice" {
		t.Errorf("CheckClaim = %+v ok=%v err=%v", got, ok, err)
	}

	if err := client.ReleaseClaim(ctx, "auth-refactor", "alice"); err != nil {
		t.Fatalf("ReleaseClaim: %v", err)
	}
	if err := client.ReleaseClaim(ctx, "auth-refactor", "alice"); !errors.Is(err, coord.ErrNotFound) {
		t.Errorf("double release = %v, want coord.ErrNotFound", err)
	}
}

func TestClientHeartbeatAndShadow(t *testing.T) {
	client := startDaemon(t)
	ctx := context.Background()

	if _, ok, err := client.Heartbeat(ctx, "alice"); err != nil || ok {
		t.Fatalf("Heartbeat before record = ok=%v err=%v", ok, err)
	}

	if err := client.PrimaryHeartbeat(ctx, "alice"); err != nil {
		t.Fatalf("PrimaryHeartbeat: %v", err)
	}
	view, ok, err := client.Heartbeat(ctx, "alice")
	if err != nil || !ok || !view.Online {
		t.Fatalf("Heartbeat = %+v ok=%v err=%v", view, ok, err)
	}

	agent, err := client.RegisterShadow(ctx, "alice", "shadow-7", 300000)
	if err != nil {
		t.Fatalf("RegisterShadow: %v", err)
	}
	if agent.Status != fleet.StateShadowDormant {
		t.Errorf("registered = %+v", agent)
	}

	// Primary is live, so nothing stalls.
	result, err := client.CheckStalls(ctx)
	if err != nil {
		t.Fatalf("CheckStalls: %v", err)
	}
	if result.Checked != 1 || len(result.Activated) != 0 {
		t.Errorf("sweep = %+v", result)
	}

	activated, err := client.ActivateShadow(ctx, "shadow-7")
	if err != nil {
		t.Fatalf("ActivateShadow: %v", err)
	}
	if activated.Status != fleet.StateShadowActive {
		t.Errorf("activated = %+v", activated)
	}
	if _, err := client.ActivateShadow(ctx, "shadow-7"); !errors.Is(err, coord.ErrValidation) && !errors.Is(err, coord.ErrIllegalTransition) {
		// Illegal transitions map to 400 on the wire, which decodes as a
		// validation-class error.
		t.Errorf("double activation = %v", err)
	}
}

func TestClientStatus(t *testing.T) {
	client := startDaemon(t)

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PID == 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestDialFailsWithoutDaemon(t *testing.T) {
	if _, err := coordaccess.Dial("127.0.0.1:1", ""); err == nil {
		t.Fatal("Dial succeeded against closed port")
	}
	if _, err := coordaccess.Dial("", ""); err == nil {
		t.Fatal("Dial succeeded with empty bind")
	}
}
