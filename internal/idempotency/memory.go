package idempotency

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	resp    *Response
	expires time.Time
}

// MemoryStore keeps keys in process memory for single-instance runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) live(key string) (entry, bool) {
	e, ok := m.entries[key]
	if ok && m.now().After(e.expires) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, ok
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.resp == nil {
		return nil, nil
	}
	r := *e.resp
	return &r, nil
}

func (m *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.entries[key] = entry{expires: m.now().Add(ttl)}
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.resp == nil {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) Set(_ context.Context, key string, resp Response, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{resp: &resp, expires: m.now().Add(ttl)}
	return nil
}
