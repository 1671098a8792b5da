// Package zones tracks directory-level ownership. A zone maps a stable id
// to a filesystem area owned by one agent; ownership lasts until released.
package zones

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

const namespace = "zones"

// Zone is a directory-level ownership record.
type Zone struct {
	ZoneID      string `json:"zoneId"`
	Path        string `json:"path"`
	Owner       string `json:"owner"`
	Description string `json:"description,omitempty"`
	ClaimedAt   string `json:"claimedAt"`
}

// ConflictError reports a zone claim against an id owned by another agent.
type ConflictError struct {
	Existing Zone
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("zone owned by %s", e.Existing.Owner)
}

func (e *ConflictError) Unwrap() error { return coord.ErrConflict }

// Registry is the zone ownership store.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry builds a zone registry on the given backend.
func NewRegistry(s store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  s,
		logger: logging.WithComponent(logger, "zones"),
	}
}

// Claim takes ownership of a zone id. Claiming a zone you already own
// updates its path and description; a zone owned by another agent yields
// a *ConflictError.
func (r *Registry) Claim(ctx context.Context, zoneID, path, owner, description string) (Zone, error) {
	if zoneID == "" {
		return Zone{}, coord.Validationf("zone claim requires a zone id")
	}
	if path == "" {
		return Zone{}, coord.Validationf("zone claim requires a path")
	}
	if owner == "" {
		return Zone{}, coord.Validationf("zone claim requires an owner")
	}

	existing, ok, err := r.load(ctx, zoneID)
	if err != nil {
		return Zone{}, err
	}

	zone := Zone{
		ZoneID:      zoneID,
		Path:        path,
		Owner:       owner,
		Description: description,
		ClaimedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if ok {
		if existing.Owner != owner {
			return Zone{}, &ConflictError{Existing: existing}
		}
		zone.ClaimedAt = existing.ClaimedAt
	}

	if err := r.save(ctx, zone); err != nil {
		return Zone{}, err
	}
	r.logger.Info("zone claimed",
		logging.String("zone", zoneID),
		logging.String(logging.FieldResource, path),
		logging.String(logging.FieldAgent, owner),
	)
	return zone, nil
}

// Release drops a zone. Only the owner may release it.
func (r *Registry) Release(ctx context.Context, zoneID, owner string) error {
	if zoneID == "" || owner == "" {
		return coord.Validationf("zone release requires a zone id and owner")
	}
	existing, ok, err := r.load(ctx, zoneID)
	if err != nil {
		return err
	}
	if !ok {
		return coord.Wrap(coord.ErrNotFound, "zones", "release", fmt.Sprintf("no zone %q", zoneID), nil)
	}
	if existing.Owner != owner {
		return &ConflictError{Existing: existing}
	}
	if _, err := r.store.HDel(ctx, namespace, zoneID); err != nil {
		return coord.Wrap(nil, "zones", "release", "delete zone", err)
	}
	r.logger.Info("zone released",
		logging.String("zone", zoneID),
		logging.String(logging.FieldAgent, owner),
	)
	return nil
}

// List returns all zones sorted by zone id.
func (r *Registry) List(ctx context.Context) ([]Zone, error) {
	raw, err := r.store.HGetAll(ctx, namespace)
	if err != nil {
		return nil, coord.Wrap(nil, "zones", "list", "read zones", err)
	}
	out := make([]Zone, 0, len(raw))
	for field, value := range raw {
		var zone Zone
		if err := json.Unmarshal([]byte(value), &zone); err != nil {
			r.logger.Warn("skipping malformed zone record",
				logging.String("zone", field),
				logging.Error(err),
			)
			continue
		}
		out = append(out, zone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out, nil
}

// ZonesFor returns the zones owned by a single agent, sorted by zone id.
func (r *Registry) ZonesFor(ctx context.Context, owner string) ([]Zone, error) {
	if owner == "" {
		return nil, coord.Validationf("owner filter requires an agent id")
	}
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Zone, 0, len(all))
	for _, zone := range all {
		if zone.Owner == owner {
			out = append(out, zone)
		}
	}
	return out, nil
}

func (r *Registry) load(ctx context.Context, zoneID string) (Zone, bool, error) {
	value, ok, err := r.store.HGet(ctx, namespace, zoneID)
	if err != nil {
		return Zone{}, false, coord.Wrap(nil, "zones", "load", "read zone", err)
	}
	if !ok {
		return Zone{}, false, nil
	}
	var zone Zone
	if err := json.Unmarshal([]byte(value), &zone); err != nil {
		r.logger.Warn("malformed zone record, treating as unclaimed",
			logging.String("zone", zoneID),
			logging.Error(err),
		)
		return Zone{}, false, nil
	}
	return zone, true, nil
}

func (r *Registry) save(ctx context.Context, zone Zone) error {
	payload, err := json.Marshal(zone)
	if err != nil {
		return coord.Wrap(nil, "zones", "save", "encode zone", err)
	}
	if err := r.store.HSet(ctx, namespace, zone.ZoneID, string(payload)); err != nil {
		return coord.Wrap(nil, "zones", "save", "write zone", err)
	}
	return nil
}
