package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"roost/internal/config"
	"roost/internal/store"
)

// MustOpenStore opens the coordination database for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// SeedRecord marshals v and writes it under namespace/key, letting tests plant
// records with back-dated timestamps that the public operations never produce.
func SeedRecord(t testing.TB, s store.Store, namespace, key string, v any) {
	t.Helper()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal seed record: %v", err)
	}
	if err := s.HSet(context.Background(), namespace, key, string(raw)); err != nil {
		t.Fatalf("seed %s/%s: %v", namespace, key, err)
	}
}
