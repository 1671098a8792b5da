package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"roost/internal/logging"
)

// Resilient composes the durable backend with the in-process fallback.
// Backend failures are logged and absorbed: the failing operation is served
// from the fallback instead, and callers never observe the outage. Writes
// that land in the fallback while the backend is down are not replayed.
type Resilient struct {
	remote   Store
	local    *Fallback
	logger   *slog.Logger
	degraded atomic.Bool
}

// NewResilient wraps a durable store with fallback behavior.
func NewResilient(remote Store, logger *slog.Logger) *Resilient {
	return &Resilient{
		remote: remote,
		local:  NewFallback(),
		logger: logging.WithComponent(logger, "store"),
	}
}

func (r *Resilient) HSet(ctx context.Context, ns, field, value string) error {
	if err := r.remote.HSet(ctx, ns, field, value); err != nil {
		r.fallback("hset", err)
		return r.local.HSet(ctx, ns, field, value)
	}
	r.recovered()
	return nil
}

func (r *Resilient) HGet(ctx context.Context, ns, field string) (string, bool, error) {
	value, ok, err := r.remote.HGet(ctx, ns, field)
	if err != nil {
		r.fallback("hget", err)
		return r.local.HGet(ctx, ns, field)
	}
	r.recovered()
	return value, ok, nil
}

func (r *Resilient) HDel(ctx context.Context, ns, field string) (bool, error) {
	removed, err := r.remote.HDel(ctx, ns, field)
	if err != nil {
		r.fallback("hdel", err)
		return r.local.HDel(ctx, ns, field)
	}
	r.recovered()
	return removed, nil
}

func (r *Resilient) HGetAll(ctx context.Context, ns string) (map[string]string, error) {
	values, err := r.remote.HGetAll(ctx, ns)
	if err != nil {
		r.fallback("hgetall", err)
		return r.local.HGetAll(ctx, ns)
	}
	r.recovered()
	return values, nil
}

func (r *Resilient) RPush(ctx context.Context, key string, values ...string) error {
	if err := r.remote.RPush(ctx, key, values...); err != nil {
		r.fallback("rpush", err)
		return r.local.RPush(ctx, key, values...)
	}
	r.recovered()
	return nil
}

func (r *Resilient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := r.remote.LRange(ctx, key, start, stop)
	if err != nil {
		r.fallback("lrange", err)
		return r.local.LRange(ctx, key, start, stop)
	}
	r.recovered()
	return values, nil
}

func (r *Resilient) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := r.remote.LTrim(ctx, key, start, stop); err != nil {
		r.fallback("ltrim", err)
		return r.local.LTrim(ctx, key, start, stop)
	}
	r.recovered()
	return nil
}

func (r *Resilient) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := r.remote.Get(ctx, key)
	if err != nil {
		r.fallback("get", err)
		return r.local.Get(ctx, key)
	}
	r.recovered()
	return value, ok, nil
}

func (r *Resilient) Set(ctx context.Context, key, value string) error {
	if err := r.remote.Set(ctx, key, value); err != nil {
		r.fallback("set", err)
		return r.local.Set(ctx, key, value)
	}
	r.recovered()
	return nil
}

func (r *Resilient) Close() error {
	return r.remote.Close()
}

// Degraded reports whether the last backend operation fell back to the
// in-process cache.
func (r *Resilient) Degraded() bool {
	return r.degraded.Load()
}

func (r *Resilient) fallback(op string, err error) {
	if r.degraded.CompareAndSwap(false, true) {
		r.logger.Warn("coordination backend unavailable, serving from local cache",
			logging.String("op", op),
			logging.Error(err),
			logging.String(logging.FieldEventType, "backend_fallback"),
		)
		return
	}
	r.logger.Debug("backend still unavailable", logging.String("op", op), logging.Error(err))
}

func (r *Resilient) recovered() {
	if r.degraded.CompareAndSwap(true, false) {
		r.logger.Info("coordination backend recovered",
			logging.String(logging.FieldEventType, "backend_recovered"),
		)
	}
}
