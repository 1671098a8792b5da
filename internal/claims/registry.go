// Package claims tracks advisory work-item ownership across agents.
//
// A claim is an exclusive marker on a named piece of work. Claims do not
// enforce anything; cooperating agents check before starting work and
// release when done. Claims older than the configured staleness window are
// treated as abandoned and may be taken over.
package claims

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

const namespace = "claims"

// Claim records who is working on what.
type Claim struct {
	What        string `json:"what"`
	By          string `json:"by"`
	Description string `json:"description,omitempty"`
	Since       string `json:"since"`
}

// Age reports how long ago the claim was taken. Malformed timestamps
// report a zero time, which callers treat as maximally stale.
func (c Claim) Age(now time.Time) (time.Duration, bool) {
	since, err := time.Parse(time.RFC3339, c.Since)
	if err != nil {
		return 0, false
	}
	return now.Sub(since), true
}

// ConflictError reports a claim attempt on work already owned by another
// agent. Existing carries the current owner's record so callers can name
// the holder.
type ConflictError struct {
	Existing Claim
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("already claimed by %s", e.Existing.By)
}

func (e *ConflictError) Unwrap() error { return coord.ErrConflict }

// Registry is the claim store for a single coordination backend.
type Registry struct {
	store      store.Store
	logger     *slog.Logger
	staleAfter time.Duration
}

// NewRegistry builds a registry on the given backend. Claims older than
// staleAfter are considered abandoned.
func NewRegistry(s store.Store, logger *slog.Logger, staleAfter time.Duration) *Registry {
	return &Registry{
		store:      s,
		logger:     logging.WithComponent(logger, "claims"),
		staleAfter: staleAfter,
	}
}

// Claim takes ownership of a work item. Re-claiming work you already own
// refreshes the claim timestamp. A live claim by another agent yields a
// *ConflictError; stale claims are silently taken over.
func (r *Registry) Claim(ctx context.Context, what, by, description string) (Claim, error) {
	if what == "" {
		return Claim{}, coord.Validationf("claim requires a work item name")
	}
	if by == "" {
		return Claim{}, coord.Validationf("claim requires an agent id")
	}

	existing, ok, err := r.load(ctx, what)
	if err != nil {
		return Claim{}, err
	}
	if ok && existing.By != by {
		if !r.stale(existing, time.Now()) {
			return Claim{}, &ConflictError{Existing: existing}
		}
		r.logger.Info("taking over stale claim",
			logging.String(logging.FieldResource, what),
			logging.String("previous_owner", existing.By),
			logging.String(logging.FieldAgent, by),
		)
	}

	claim := Claim{
		What:        what,
		By:          by,
		Description: description,
		Since:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.save(ctx, claim); err != nil {
		return Claim{}, err
	}
	r.logger.Info("claim recorded",
		logging.String(logging.FieldResource, what),
		logging.String(logging.FieldAgent, by),
	)
	return claim, nil
}

// Check reports whether a work item is currently claimed. Stale claims
// report as unclaimed.
func (r *Registry) Check(ctx context.Context, what string) (Claim, bool, error) {
	if what == "" {
		return Claim{}, false, coord.Validationf("check requires a work item name")
	}
	claim, ok, err := r.load(ctx, what)
	if err != nil || !ok {
		return Claim{}, false, err
	}
	if r.stale(claim, time.Now()) {
		return Claim{}, false, nil
	}
	return claim, true, nil
}

// Release drops a claim. Only the claim owner may release it.
func (r *Registry) Release(ctx context.Context, what, by string) error {
	if what == "" || by == "" {
		return coord.Validationf("release requires a work item name and agent id")
	}
	existing, ok, err := r.load(ctx, what)
	if err != nil {
		return err
	}
	if !ok {
		return coord.Wrap(coord.ErrNotFound, "claims", "release", fmt.Sprintf("no claim on %q", what), nil)
	}
	if existing.By != by {
		return &ConflictError{Existing: existing}
	}
	if _, err := r.store.HDel(ctx, namespace, what); err != nil {
		return coord.Wrap(nil, "claims", "release", "delete claim", err)
	}
	r.logger.Info("claim released",
		logging.String(logging.FieldResource, what),
		logging.String(logging.FieldAgent, by),
	)
	return nil
}

// List returns current claims sorted by work item name. Stale claims are
// excluded unless includeStale is set.
func (r *Registry) List(ctx context.Context, includeStale bool) ([]Claim, error) {
	raw, err := r.store.HGetAll(ctx, namespace)
	if err != nil {
		return nil, coord.Wrap(nil, "claims", "list", "read claims", err)
	}

	now := time.Now()
	out := make([]Claim, 0, len(raw))
	for field, value := range raw {
		var claim Claim
		if err := json.Unmarshal([]byte(value), &claim); err != nil {
			r.logger.Warn("skipping malformed claim record",
				logging.String(logging.FieldResource, field),
				logging.Error(err),
			)
			continue
		}
		if !includeStale && r.stale(claim, now) {
			continue
		}
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].What < out[j].What })
	return out, nil
}

// stale reports whether a claim's age strictly exceeds the staleness
// window; a claim exactly at the window is still live. Unreadable
// timestamps count as stale.
func (r *Registry) stale(c Claim, now time.Time) bool {
	age, parsed := c.Age(now)
	return !parsed || age > r.staleAfter
}

func (r *Registry) load(ctx context.Context, what string) (Claim, bool, error) {
	value, ok, err := r.store.HGet(ctx, namespace, what)
	if err != nil {
		return Claim{}, false, coord.Wrap(nil, "claims", "load", "read claim", err)
	}
	if !ok {
		return Claim{}, false, nil
	}
	var claim Claim
	if err := json.Unmarshal([]byte(value), &claim); err != nil {
		// Unreadable records are reclaimable, never surfaced as data.
		r.logger.Warn("malformed claim record, treating as unclaimed",
			logging.String(logging.FieldResource, what),
			logging.Error(err),
		)
		return Claim{}, false, nil
	}
	return claim, true, nil
}

func (r *Registry) save(ctx context.Context, claim Claim) error {
	payload, err := json.Marshal(claim)
	if err != nil {
		return coord.Wrap(nil, "claims", "save", "encode claim", err)
	}
	if err := r.store.HSet(ctx, namespace, claim.What, string(payload)); err != nil {
		return coord.Wrap(nil, "claims", "save", "write claim", err)
	}
	return nil
}
