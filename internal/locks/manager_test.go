package locks

import (
	"context"
	"errors"
	"testing"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(store.NewFallback(), logging.NewNop())
}

func TestAcquireAndCheck(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "src/api/users.go", "alice", "refactoring handlers")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if lock.LockedBy != "alice" || lock.LockedAt == "" {
		t.Errorf("lock = %+v", lock)
	}

	got, ok, err := m.Check(ctx, "src/api/users.go")
	if err != nil || !ok {
		t.Fatalf("Check = ok=%v err=%v", ok, err)
	}
	if got.Reason != "refactoring handlers" {
		t.Errorf("Check reason = %q", got.Reason)
	}

	if _, ok, _ := m.Check(ctx, "src/other.go"); ok {
		t.Error("Check reported lock on unlocked path")
	}
}

func TestAcquireConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "src/api/users.go", "alice", ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, err := m.Acquire(ctx, "src/api/users.go", "bob", "")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want *ConflictError", err)
	}
	if conflict.Existing.LockedBy != "alice" {
		t.Errorf("conflict holder = %q", conflict.Existing.LockedBy)
	}
	if !errors.Is(err, coord.ErrConflict) {
		t.Error("conflict does not unwrap to coord.ErrConflict")
	}
}

func TestReentrantAcquireKeepsHoldTime(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "src/api/users.go", "alice", "pass one")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	second, err := m.Acquire(ctx, "src/api/users.go", "alice", "pass two")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if second.LockedAt != first.LockedAt {
		t.Errorf("re-acquire changed LockedAt: %s -> %s", first.LockedAt, second.LockedAt)
	}
	if second.Reason != "pass two" {
		t.Errorf("re-acquire reason = %q", second.Reason)
	}
}

func TestReleaseOwnership(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "src/api/users.go", "alice", ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := m.Release(ctx, "src/api/users.go", "bob"); !errors.Is(err, coord.ErrConflict) {
		t.Fatalf("release by non-holder = %v, want conflict", err)
	}
	if err := m.Release(ctx, "src/api/users.go", "alice"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := m.Check(ctx, "src/api/users.go"); ok {
		t.Error("lock still present after release")
	}
	if err := m.Release(ctx, "src/api/users.go", "alice"); !errors.Is(err, coord.ErrNotFound) {
		t.Errorf("double release = %v, want not found", err)
	}
}

func TestListSorted(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, path := range []string{"b.go", "a.go", "c.go"} {
		if _, err := m.Acquire(ctx, path, "alice", ""); err != nil {
			t.Fatalf("Acquire %s: %v", path, err)
		}
	}
	locks, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 3 || locks[0].ResourcePath != "a.go" || locks[2].ResourcePath != "c.go" {
		t.Errorf("List = %+v", locks)
	}
}

func TestValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "", "alice", ""); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("empty path = %v", err)
	}
	if _, err := m.Acquire(ctx, "a.go", "", ""); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("empty agent = %v", err)
	}
	if err := m.Release(ctx, "a.go", ""); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("empty release agent = %v", err)
	}
}
