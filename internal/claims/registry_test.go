package claims

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Fallback) {
	t.Helper()
	backend := store.NewFallback()
	return NewRegistry(backend, logging.NewNop(), time.Hour), backend
}

func TestClaimAndCheck(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	claim, err := r.Claim(ctx, "auth-refactor", "alice", "rework token flow")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claim.By != "alice" || claim.Since == "" {
		t.Errorf("claim = %+v", claim)
	}

	got, ok, err := r.Check(ctx, "auth-refactor")
	if err != nil || !ok {
		t.Fatalf("Check = ok=%v err=%v", ok, err)
	}
	if got.By != "alice" || got.Description != "rework token flow" {
		t.Errorf("Check = %+v", got)
	}

	if _, ok, _ := r.Check(ctx, "unknown"); ok {
		t.Error("Check reported a claim on unclaimed work")
	}
}

func TestClaimConflictNamesOwner(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Claim(ctx, "auth-refactor", "alice", ""); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	_, err := r.Claim(ctx, "auth-refactor", "bob", "")
	if err == nil {
		t.Fatal("second claim succeeded, want conflict")
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want *ConflictError", err)
	}
	if conflict.Existing.By != "alice" {
		t.Errorf("conflict owner = %q, want alice", conflict.Existing.By)
	}
	if !errors.Is(err, coord.ErrConflict) {
		t.Error("conflict does not unwrap to coord.ErrConflict")
	}
}

func TestSameOwnerReclaimRefreshes(t *testing.T) {
	r, backend := newTestRegistry(t)
	ctx := context.Background()

	aged := Claim{
		What:  "auth-refactor",
		By:    "alice",
		Since: time.Now().Add(-30 * time.Minute).UTC().Format(time.RFC3339),
	}
	writeClaim(t, backend, aged)

	refreshed, err := r.Claim(ctx, "auth-refactor", "alice", "")
	if err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	age, ok := refreshed.Age(time.Now())
	if !ok || age > time.Minute {
		t.Errorf("re-claim did not refresh timestamp, age=%v", age)
	}
}

func TestStaleClaimTakenOver(t *testing.T) {
	r, backend := newTestRegistry(t)
	ctx := context.Background()

	stale := Claim{
		What:  "auth-refactor",
		By:    "alice",
		Since: time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339),
	}
	writeClaim(t, backend, stale)

	// Stale claims no longer report as claimed.
	if _, ok, _ := r.Check(ctx, "auth-refactor"); ok {
		t.Error("stale claim reported as active")
	}

	claim, err := r.Claim(ctx, "auth-refactor", "bob", "")
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if claim.By != "bob" {
		t.Errorf("owner after takeover = %q", claim.By)
	}
}

func TestStalenessBoundary(t *testing.T) {
	r, _ := newTestRegistry(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		since time.Time
		stale bool
	}{
		{"fresh", now.Add(-time.Minute), false},
		{"exactly at window", now.Add(-time.Hour), false},
		{"just past window", now.Add(-time.Hour - time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claim := Claim{What: "w", By: "alice", Since: tc.since.Format(time.RFC3339)}
			if got := r.stale(claim, now); got != tc.stale {
				t.Errorf("stale = %v, want %v", got, tc.stale)
			}
		})
	}

	if !r.stale(Claim{Since: "not-a-timestamp"}, now) {
		t.Error("unparseable timestamp not treated as stale")
	}
}

func TestReleaseOwnership(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Claim(ctx, "auth-refactor", "alice", ""); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	err := r.Release(ctx, "auth-refactor", "bob")
	if !errors.Is(err, coord.ErrConflict) {
		t.Fatalf("release by non-owner = %v, want conflict", err)
	}

	if err := r.Release(ctx, "auth-refactor", "alice"); err != nil {
		t.Fatalf("release by owner: %v", err)
	}
	if _, ok, _ := r.Check(ctx, "auth-refactor"); ok {
		t.Error("claim still present after release")
	}

	err = r.Release(ctx, "auth-refactor", "alice")
	if !errors.Is(err, coord.ErrNotFound) {
		t.Errorf("double release = %v, want not found", err)
	}
}

func TestListFiltersStaleAndMalformed(t *testing.T) {
	r, backend := newTestRegistry(t)
	ctx := context.Background()

	writeClaim(t, backend, Claim{What: "live", By: "alice", Since: time.Now().UTC().Format(time.RFC3339)})
	writeClaim(t, backend, Claim{What: "stale", By: "bob", Since: time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)})
	if err := backend.HSet(ctx, "claims", "garbage", "{not json"); err != nil {
		t.Fatalf("HSet: %v", err)
	}

	live, err := r.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(live) != 1 || live[0].What != "live" {
		t.Errorf("List(false) = %+v", live)
	}

	all, err := r.List(ctx, true)
	if err != nil {
		t.Fatalf("List stale: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(true) len = %d, want 2 (malformed always skipped)", len(all))
	}
}

func TestClaimValidation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Claim(ctx, "", "alice", ""); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("empty what = %v", err)
	}
	if _, err := r.Claim(ctx, "work", "", ""); !errors.Is(err, coord.ErrValidation) {
		t.Errorf("empty by = %v", err)
	}
}

func writeClaim(t *testing.T, backend *store.Fallback, claim Claim) {
	t.Helper()
	payload, err := json.Marshal(claim)
	if err != nil {
		t.Fatalf("marshal claim: %v", err)
	}
	if err := backend.HSet(context.Background(), "claims", claim.What, string(payload)); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
}
