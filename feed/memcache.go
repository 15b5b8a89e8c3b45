package feed

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the process-local Cache used by tests and redis-less runs.
// Same TTL expiry semantics as the redis implementation.
type MemoryCache struct {
	mu      sync.Mutex
	TTL     time.Duration
	entries map[int]memoryCacheEntry
}

type memoryCacheEntry struct {
	page      []Entry
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{TTL: TTL, entries: make(map[int]memoryCacheEntry)}
}

func (mc *MemoryCache) Get(_ context.Context, page int) ([]Entry, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	e, ok := mc.entries[page]
	if !ok || time.Now().After(e.expiresAt) {
		delete(mc.entries, page)
		return nil, ErrCacheMiss
	}
	out := make([]Entry, len(e.page))
	copy(out, e.page)
	return out, nil
}

func (mc *MemoryCache) Put(_ context.Context, page int, entries []Entry) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	stored := make([]Entry, len(entries))
	copy(stored, entries)
	mc.entries[page] = memoryCacheEntry{page: stored, expiresAt: time.Now().Add(mc.TTL)}
	return nil
}

func (mc *MemoryCache) Invalidate(_ context.Context, page int) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, page)
	return nil
}

func (mc *MemoryCache) InvalidateAll(_ context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries = make(map[int]memoryCacheEntry)
	return nil
}
