// Package locks provides advisory exclusive locks on resource paths.
//
// Unlike claims, locks never go stale on their own: a lock persists until
// its holder releases it, so a crashed holder needs manual cleanup.
package locks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

const namespace = "resource-locks"

// Lock records exclusive use of a resource path.
type Lock struct {
	ResourcePath string `json:"resourcePath"`
	LockedBy     string `json:"lockedBy"`
	Reason       string `json:"reason,omitempty"`
	LockedAt     string `json:"lockedAt"`
}

// ConflictError reports a lock attempt on a resource held by another agent.
type ConflictError struct {
	Existing Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource locked by %s", e.Existing.LockedBy)
}

func (e *ConflictError) Unwrap() error { return coord.ErrConflict }

// Manager mediates lock acquisition and release.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// NewManager builds a lock manager on the given backend.
func NewManager(s store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logger, "locks"),
	}
}

// Acquire takes the lock on a resource path. Re-acquiring a lock you
// already hold succeeds and keeps the original acquisition time; a lock
// held by another agent yields a *ConflictError.
func (m *Manager) Acquire(ctx context.Context, resourcePath, lockedBy, reason string) (Lock, error) {
	if resourcePath == "" {
		return Lock{}, coord.Validationf("lock requires a resource path")
	}
	if lockedBy == "" {
		return Lock{}, coord.Validationf("lock requires an agent id")
	}

	existing, ok, err := m.load(ctx, resourcePath)
	if err != nil {
		return Lock{}, err
	}

	lock := Lock{
		ResourcePath: resourcePath,
		LockedBy:     lockedBy,
		Reason:       reason,
		LockedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if ok {
		if existing.LockedBy != lockedBy {
			return Lock{}, &ConflictError{Existing: existing}
		}
		// Re-entrant acquire keeps the original hold time.
		lock.LockedAt = existing.LockedAt
	}

	if err := m.save(ctx, lock); err != nil {
		return Lock{}, err
	}
	m.logger.Info("lock acquired",
		logging.String(logging.FieldResource, resourcePath),
		logging.String(logging.FieldAgent, lockedBy),
	)
	return lock, nil
}

// Check reports whether a resource path is locked.
func (m *Manager) Check(ctx context.Context, resourcePath string) (Lock, bool, error) {
	if resourcePath == "" {
		return Lock{}, false, coord.Validationf("check requires a resource path")
	}
	return m.load(ctx, resourcePath)
}

// Release drops a lock. Only the holder may release it.
func (m *Manager) Release(ctx context.Context, resourcePath, lockedBy string) error {
	if resourcePath == "" || lockedBy == "" {
		return coord.Validationf("release requires a resource path and agent id")
	}
	existing, ok, err := m.load(ctx, resourcePath)
	if err != nil {
		return err
	}
	if !ok {
		return coord.Wrap(coord.ErrNotFound, "locks", "release", fmt.Sprintf("no lock on %q", resourcePath), nil)
	}
	if existing.LockedBy != lockedBy {
		return &ConflictError{Existing: existing}
	}
	if _, err := m.store.HDel(ctx, namespace, resourcePath); err != nil {
		return coord.Wrap(nil, "locks", "release", "delete lock", err)
	}
	m.logger.Info("lock released",
		logging.String(logging.FieldResource, resourcePath),
		logging.String(logging.FieldAgent, lockedBy),
	)
	return nil
}

// List returns all held locks sorted by resource path.
func (m *Manager) List(ctx context.Context) ([]Lock, error) {
	raw, err := m.store.HGetAll(ctx, namespace)
	if err != nil {
		return nil, coord.Wrap(nil, "locks", "list", "read locks", err)
	}
	out := make([]Lock, 0, len(raw))
	for field, value := range raw {
		var lock Lock
		if err := json.Unmarshal([]byte(value), &lock); err != nil {
			m.logger.Warn("skipping malformed lock record",
				logging.String(logging.FieldResource, field),
				logging.Error(err),
			)
			continue
		}
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourcePath < out[j].ResourcePath })
	return out, nil
}

func (m *Manager) load(ctx context.Context, resourcePath string) (Lock, bool, error) {
	value, ok, err := m.store.HGet(ctx, namespace, resourcePath)
	if err != nil {
		return Lock{}, false, coord.Wrap(nil, "locks", "load", "read lock", err)
	}
	if !ok {
		return Lock{}, false, nil
	}
	var lock Lock
	if err := json.Unmarshal([]byte(value), &lock); err != nil {
		m.logger.Warn("malformed lock record, treating as unlocked",
			logging.String(logging.FieldResource, resourcePath),
			logging.Error(err),
		)
		return Lock{}, false, nil
	}
	return lock, true, nil
}

func (m *Manager) save(ctx context.Context, lock Lock) error {
	payload, err := json.Marshal(lock)
	if err != nil {
		return coord.Wrap(nil, "locks", "save", "encode lock", err)
	}
	if err := m.store.HSet(ctx, namespace, lock.ResourcePath, string(payload)); err != nil {
		return coord.Wrap(nil, "locks", "save", "write lock", err)
	}
	return nil
}
