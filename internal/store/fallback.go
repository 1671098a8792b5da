package store

import (
	"context"
	"sync"
)

// Fallback is a disposable in-process Store used when the shared backend is
// unreachable. It offers no cross-process visibility; everything it holds is
// lost on restart.
type Fallback struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	lists  map[string][]string
	kv     map[string]string
}

// NewFallback returns an empty in-process store.
func NewFallback() *Fallback {
	return &Fallback{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		kv:     make(map[string]string),
	}
}

func (f *Fallback) HSet(_ context.Context, ns, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.hashes[ns]
	if !ok {
		hash = make(map[string]string)
		f.hashes[ns] = hash
	}
	hash[field] = value
	return nil
}

func (f *Fallback) HGet(_ context.Context, ns, field string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.hashes[ns][field]
	return value, ok, nil
}

func (f *Fallback) HDel(_ context.Context, ns, field string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.hashes[ns]
	if !ok {
		return false, nil
	}
	if _, exists := hash[field]; !exists {
		return false, nil
	}
	delete(hash, field)
	return true, nil
}

func (f *Fallback) HGetAll(_ context.Context, ns string) (map[string]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.hashes[ns]))
	for field, value := range f.hashes[ns] {
		out[field] = value
	}
	return out, nil
}

func (f *Fallback) RPush(_ context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], values...)
	return nil
}

func (f *Fallback) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	values := f.lists[key]
	lo, hi, ok := normalizeRange(start, stop, int64(len(values)))
	if !ok {
		return nil, nil
	}
	out := make([]string, hi-lo)
	copy(out, values[lo:hi])
	return out, nil
}

func (f *Fallback) LTrim(_ context.Context, key string, start, stop int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.lists[key]
	lo, hi, ok := normalizeRange(start, stop, int64(len(values)))
	if !ok {
		delete(f.lists, key)
		return nil
	}
	kept := make([]string, hi-lo)
	copy(kept, values[lo:hi])
	f.lists[key] = kept
	return nil
}

func (f *Fallback) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.kv[key]
	return value, ok, nil
}

func (f *Fallback) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *Fallback) Close() error { return nil }
