// Package cache provides a TTL keyed cache for summary status snapshots.
//
// Entries for in-flight work carry a short TTL so clients poll fresh state;
// finished summaries are stable and cache for much longer.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Service is a keyed cache with per-entry expiry.
type Service interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TTLPolicy picks the expiry for a cached snapshot.
type TTLPolicy struct {
	Processing time.Duration
	Ready      time.Duration
}

// DefaultPolicy matches the standard snapshot expiry tiers.
func DefaultPolicy() TTLPolicy {
	return TTLPolicy{
		Processing: 5 * time.Minute,
		Ready:      24 * time.Hour,
	}
}

// For returns the TTL for a snapshot, long for terminal ready state and short
// for everything still moving.
func (p TTLPolicy) For(ready bool) time.Duration {
	if ready {
		return p.Ready
	}
	return p.Processing
}

// SummaryKey builds the cache key for one summary request.
func SummaryKey(episodeID, level, language string) string {
	return strings.Join([]string{"summary", episodeID, level, language}, ":")
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Service implementation.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value when present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		if current, still := m.entries[key]; still && current.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

// Set stores a value. A zero or negative TTL stores the entry without expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry{value: stored, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
