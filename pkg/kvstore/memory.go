package kvstore

import (
	"context"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type memEntry struct {
	val       []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore keeps records in a sharded concurrent map. Reads never mutate
// the map; expired entries are hidden until Delete or Purge removes them.
type MemoryStore struct {
	data   cmap.ConcurrentMap[string, memEntry]
	now    func() time.Time
	closed atomic.Bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: cmap.New[memEntry](), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	e, ok := m.data.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.data.Set(key, memEntry{val: append([]byte(nil), value...), expiresAt: exp})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.data.Remove(key)
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (m *MemoryStore) Purge() int {
	now := m.now()
	removed := 0
	for _, key := range m.data.Keys() {
		expired := m.data.RemoveCb(key, func(_ string, e memEntry, exists bool) bool {
			return exists && !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
		})
		if expired {
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	return m.data.Count()
}

func (m *MemoryStore) Close() error {
	m.closed.Store(true)
	return nil
}
