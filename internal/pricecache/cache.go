// Package pricecache stores fetched price series by query key. Entries never
// expire: a key, once written, is served for the lifetime of the process.
package pricecache

import (
	"context"
	"sync"

	"stockdash/internal/domain"
)

// Cache maps a query key (see domain.CacheKey) to a price series.
type Cache interface {
	// Get returns the series stored under key, reporting whether it exists.
	Get(ctx context.Context, key string) (domain.PriceSeries, bool, error)
	// Set stores series under key, replacing any previous value.
	Set(ctx context.Context, key string, series domain.PriceSeries) error
}

// Compile-time interface checks.
var _ Cache = (*Memory)(nil)
var _ Cache = (*Tiered)(nil)

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]domain.PriceSeries
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]domain.PriceSeries)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (domain.PriceSeries, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[key]
	return s, ok, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, series domain.PriceSeries) error {
	m.mu.Lock()
	m.entries[key] = series
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Tiered reads through a fast local cache to a shared remote one. Remote
// hits are copied into the local tier; writes go to both.
type Tiered struct {
	local  Cache
	remote Cache
}

// NewTiered combines local and remote tiers.
func NewTiered(local, remote Cache) *Tiered {
	return &Tiered{local: local, remote: remote}
}

// Get implements Cache. A remote error is returned only when the local tier
// misses.
func (t *Tiered) Get(ctx context.Context, key string) (domain.PriceSeries, bool, error) {
	if s, ok, err := t.local.Get(ctx, key); err == nil && ok {
		return s, true, nil
	}
	s, ok, err := t.remote.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.local.Set(ctx, key, s)
	return s, true, nil
}

// Set implements Cache. The local tier is always written; the remote error,
// if any, is returned.
func (t *Tiered) Set(ctx context.Context, key string, series domain.PriceSeries) error {
	_ = t.local.Set(ctx, key, series)
	return t.remote.Set(ctx, key, series)
}
