package daemon

import (
	"context"
	"testing"
	"time"

	"roost/internal/logging"
	"roost/internal/store"
	"roost/internal/testsupport"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	d, err := New(cfg, store.NewFallback(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestStartStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status().Running {
		t.Error("daemon not running after Start")
	}
	if err := d.Start(ctx); err == nil {
		t.Error("second Start succeeded, want error")
	}

	d.Stop()
	if d.Status().Running {
		t.Error("daemon still running after Stop")
	}

	// Stop is idempotent.
	d.Stop()
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := New(cfg, store.NewFallback(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := New(cfg, store.NewFallback(), logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer second.Close()
	if err := second.Start(ctx); err == nil {
		t.Error("second instance acquired the lock")
		second.Stop()
	}
}

func TestStopWaitsForSweepLoop(t *testing.T) {
	d := newTestDaemon(t)
	d.sweepInterval = 10 * time.Millisecond

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestCheckStallsOnEmptyFleet(t *testing.T) {
	d := newTestDaemon(t)

	result, err := d.CheckStalls(context.Background())
	if err != nil {
		t.Fatalf("CheckStalls: %v", err)
	}
	if result.Checked != 0 || len(result.Activated) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newTestDaemon(t)

	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || detail != "ntfy topic not configured" {
		t.Errorf("sent=%v detail=%q", sent, detail)
	}
}
