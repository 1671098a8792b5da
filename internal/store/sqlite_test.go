package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenPath(filepath.Join(t.TempDir(), "coordination.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHashOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.HGet(ctx, "claims", "missing"); err != nil || ok {
		t.Fatalf("HGet missing = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.HSet(ctx, "claims", "task-1", `{"by":"alice"}`); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	value, ok, err := s.HGet(ctx, "claims", "task-1")
	if err != nil || !ok {
		t.Fatalf("HGet = ok=%v err=%v", ok, err)
	}
	if value != `{"by":"alice"}` {
		t.Errorf("HGet value = %q", value)
	}

	// Overwrite replaces the previous value.
	if err := s.HSet(ctx, "claims", "task-1", `{"by":"bob"}`); err != nil {
		t.Fatalf("HSet overwrite: %v", err)
	}
	value, _, _ = s.HGet(ctx, "claims", "task-1")
	if value != `{"by":"bob"}` {
		t.Errorf("HGet after overwrite = %q", value)
	}

	if err := s.HSet(ctx, "claims", "task-2", "x"); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := s.HSet(ctx, "zones", "task-1", "other-namespace"); err != nil {
		t.Fatalf("HSet: %v", err)
	}

	all, err := s.HGetAll(ctx, "claims")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("HGetAll len = %d, want 2", len(all))
	}
	if _, ok := all["task-1"]; !ok {
		t.Error("HGetAll missing task-1")
	}

	removed, err := s.HDel(ctx, "claims", "task-1")
	if err != nil || !removed {
		t.Fatalf("HDel = removed=%v err=%v", removed, err)
	}
	removed, err = s.HDel(ctx, "claims", "task-1")
	if err != nil || removed {
		t.Fatalf("HDel twice = removed=%v err=%v, want false", removed, err)
	}
}

func TestListOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RPush(ctx, "history", fmt.Sprintf("event-%d", i)); err != nil {
			t.Fatalf("RPush: %v", err)
		}
	}

	all, err := s.LRange(ctx, "history", 0, -1)
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(all) != 5 || all[0] != "event-0" || all[4] != "event-4" {
		t.Errorf("LRange all = %v", all)
	}

	tail, err := s.LRange(ctx, "history", -2, -1)
	if err != nil {
		t.Fatalf("LRange tail: %v", err)
	}
	if len(tail) != 2 || tail[0] != "event-3" || tail[1] != "event-4" {
		t.Errorf("LRange tail = %v", tail)
	}

	if err := s.LTrim(ctx, "history", -3, -1); err != nil {
		t.Fatalf("LTrim: %v", err)
	}
	kept, _ := s.LRange(ctx, "history", 0, -1)
	if len(kept) != 3 || kept[0] != "event-2" {
		t.Errorf("after LTrim = %v", kept)
	}

	// Appends after a trim preserve order.
	if err := s.RPush(ctx, "history", "event-5"); err != nil {
		t.Fatalf("RPush after trim: %v", err)
	}
	kept, _ = s.LRange(ctx, "history", 0, -1)
	if len(kept) != 4 || kept[3] != "event-5" {
		t.Errorf("after append = %v", kept)
	}
}

func TestListTrimCap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := s.RPush(ctx, "ring", fmt.Sprintf("e%d", i)); err != nil {
			t.Fatalf("RPush: %v", err)
		}
		if err := s.LTrim(ctx, "ring", -50, -1); err != nil {
			t.Fatalf("LTrim: %v", err)
		}
	}

	values, err := s.LRange(ctx, "ring", 0, -1)
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(values) != 50 {
		t.Fatalf("ring len = %d, want 50", len(values))
	}
	if values[0] != "e10" || values[49] != "e59" {
		t.Errorf("ring bounds = %s..%s, want e10..e59", values[0], values[49])
	}
}

func TestKVOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing = ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "sweep:last", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := s.Get(ctx, "sweep:last")
	if err != nil || !ok || value != "2026-01-01T00:00:00Z" {
		t.Fatalf("Get = %q ok=%v err=%v", value, ok, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordination.db")
	ctx := context.Background()

	s, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := s.HSet(ctx, "zones", "backend", "bob"); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	value, ok, err := s2.HGet(ctx, "zones", "backend")
	if err != nil || !ok || value != "bob" {
		t.Fatalf("HGet after reopen = %q ok=%v err=%v", value, ok, err)
	}
}

func TestNormalizeRange(t *testing.T) {
	cases := []struct {
		start, stop, n int64
		lo, hi         int64
		ok             bool
	}{
		{0, -1, 5, 0, 5, true},
		{-2, -1, 5, 3, 5, true},
		{0, 2, 5, 0, 3, true},
		{-50, -1, 3, 0, 3, true},
		{3, 1, 5, 0, 0, false},
		{0, -1, 0, 0, 0, false},
		{5, 9, 5, 0, 0, false},
	}
	for _, tc := range cases {
		lo, hi, ok := normalizeRange(tc.start, tc.stop, tc.n)
		if lo != tc.lo || hi != tc.hi || ok != tc.ok {
			t.Errorf("normalizeRange(%d,%d,%d) = (%d,%d,%v), want (%d,%d,%v)",
				tc.start, tc.stop, tc.n, lo, hi, ok, tc.lo, tc.hi, tc.ok)
		}
	}
}
