package fleet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(store.NewFallback(), logging.NewNop())
}

func TestSpawnAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	agent, err := r.Spawn(ctx, "worker-1", "build worker")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if agent.Status != StateProvisioning || agent.CreatedAt == "" {
		t.Errorf("agent = %+v", agent)
	}

	got, ok, err := r.Get(ctx, "worker-1")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if got.Name != "build worker" {
		t.Errorf("Get = %+v", got)
	}

	if _, err := r.Spawn(ctx, "worker-1", ""); !errors.Is(err, coord.ErrConflict) {
		t.Errorf("duplicate spawn = %v, want conflict", err)
	}
}

func TestSpawnGeneratesID(t *testing.T) {
	r := newTestRegistry(t)

	agent, err := r.Spawn(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !strings.HasPrefix(agent.AgentID, "agent-") {
		t.Errorf("generated id = %q", agent.AgentID)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Spawn(ctx, "worker-1", ""); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	for _, state := range []string{StateBooting, StateReady, StateWorking, StateIdle} {
		if _, err := r.Transition(ctx, "worker-1", state); err != nil {
			t.Fatalf("transition to %s: %v", state, err)
		}
	}

	agent, err := r.Transition(ctx, "worker-1", StateTerminated)
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if agent.Status != StateTerminated {
		t.Errorf("status = %q", agent.Status)
	}

	// Terminated is terminal.
	if _, err := r.Transition(ctx, "worker-1", StateReady); !errors.Is(err, coord.ErrIllegalTransition) {
		t.Errorf("revive terminated = %v, want illegal transition", err)
	}
}

func TestShadowPromotionGuard(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	shadow := Agent{
		AgentID:    "shadow-7",
		Status:     StateShadowDormant,
		ShadowMode: true,
		ShadowFor:  "alice",
		CreatedAt:  "2026-08-01T00:00:00Z",
	}
	if err := r.Put(ctx, shadow); err != nil {
		t.Fatalf("Put: %v", err)
	}

	activated, err := r.Transition(ctx, "shadow-7", StateShadowActive)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != StateShadowActive || activated.ActivatedAt == "" {
		t.Errorf("activated = %+v", activated)
	}

	// One-shot: a second activation is rejected.
	if _, err := r.Transition(ctx, "shadow-7", StateShadowActive); !errors.Is(err, coord.ErrIllegalTransition) {
		t.Errorf("double activate = %v, want illegal transition", err)
	}

	// Shadows can still be torn down.
	if _, err := r.Transition(ctx, "shadow-7", StateTerminated); err != nil {
		t.Errorf("terminate shadow: %v", err)
	}
}

func TestActivateRequiresDormant(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Spawn(ctx, "worker-1", ""); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := r.Transition(ctx, "worker-1", StateShadowActive); !errors.Is(err, coord.ErrIllegalTransition) {
		t.Errorf("activate non-shadow = %v, want illegal transition", err)
	}
	if _, err := r.Transition(ctx, "missing", StateShadowActive); !errors.Is(err, coord.ErrNotFound) {
		t.Errorf("activate unknown = %v, want not found", err)
	}
}

func TestPutValidation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Put(ctx, Agent{Status: StateReady}); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("missing id = %v", err)
	}
	if err := r.Put(ctx, Agent{AgentID: "x", Status: "napping"}); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("bad status = %v", err)
	}
}

func TestListSorted(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if _, err := r.Spawn(ctx, id, ""); err != nil {
			t.Fatalf("Spawn %s: %v", id, err)
		}
	}
	agents, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 3 || agents[0].AgentID != "a" || agents[2].AgentID != "c" {
		t.Errorf("List = %+v", agents)
	}
}
