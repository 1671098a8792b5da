package store

import "context"

// Store is the narrow persistence surface coordination components build on.
// Hash operations address one field inside a namespace, list operations
// address an append-only bounded log, and Get/Set address single keys.
type Store interface {
	// HSet writes one field in a namespace, replacing any previous value.
	HSet(ctx context.Context, ns, field, value string) error
	// HGet reads one field. The boolean reports whether the field exists.
	HGet(ctx context.Context, ns, field string) (string, bool, error)
	// HDel removes one field, reporting whether it existed.
	HDel(ctx context.Context, ns, field string) (bool, error)
	// HGetAll returns every field in a namespace.
	HGetAll(ctx context.Context, ns string) (map[string]string, error)

	// RPush appends values to the tail of a list.
	RPush(ctx context.Context, key string, values ...string) error
	// LRange returns list elements between start and stop inclusive.
	// Negative indices count from the tail, -1 being the last element.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LTrim discards list elements outside [start, stop].
	LTrim(ctx context.Context, key string, start, stop int64) error

	// Get reads a single key. The boolean reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a single key.
	Set(ctx context.Context, key, value string) error

	Close() error
}

// normalizeRange converts redis-style start/stop indices into a [lo, hi)
// window over a list of length n. ok is false when the window is empty.
func normalizeRange(start, stop, n int64) (int64, int64, bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n || stop < 0 {
		return 0, 0, false
	}
	return start, stop + 1, true
}
