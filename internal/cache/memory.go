package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds each namespace of the in-process backend.
const DefaultMaxEntries = 10_000

// item is one cached value with its expiration time.
type item struct {
	ns, key    string
	value      []byte
	expiration int64 // UnixNano
}

// nsMap is one namespace: key → LRU element, newest at the list front.
type nsMap struct {
	entries map[string]*list.Element
	order   *list.List
}

// Memory is a bounded in-process LRU backend.
type Memory struct {
	mu         sync.Mutex
	namespaces map[string]*nsMap
	maxEntries int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-process backend. maxEntries bounds each
// namespace independently; <= 0 uses DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		namespaces: make(map[string]*nsMap),
		maxEntries: maxEntries,
	}
}

func (m *Memory) space(ns string) *nsMap {
	s, ok := m.namespaces[ns]
	if !ok {
		s = &nsMap{entries: make(map[string]*list.Element), order: list.New()}
		m.namespaces[ns] = s
	}
	return s
}

func (m *Memory) Get(_ context.Context, ns, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.namespaces[ns]
	if !ok {
		return nil, false
	}
	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	it := el.Value.(*item)
	if time.Now().UnixNano() > it.expiration {
		s.order.Remove(el)
		delete(s.entries, key)
		return nil, false
	}
	s.order.MoveToFront(el)
	return it.value, true
}

func (m *Memory) Set(_ context.Context, ns, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.space(ns)
	exp := time.Now().Add(ttl).UnixNano()

	if el, ok := s.entries[key]; ok {
		// Replace atomically with respect to this key.
		el.Value = &item{ns: ns, key: key, value: value, expiration: exp}
		s.order.MoveToFront(el)
		return
	}

	s.entries[key] = s.order.PushFront(&item{ns: ns, key: key, value: value, expiration: exp})

	// Evict from the cold end once over capacity.
	for s.order.Len() > m.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*item).key)
	}
}

func (m *Memory) Delete(_ context.Context, ns, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.namespaces[ns]
	if !ok {
		return false
	}
	el, ok := s.entries[key]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.entries, key)
	return true
}

func (m *Memory) Has(ctx context.Context, ns, key string) bool {
	_, ok := m.Get(ctx, ns, key)
	return ok
}

func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces = make(map[string]*nsMap)
}

// Cleanup removes expired items across all namespaces.
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixNano()
	for _, s := range m.namespaces {
		for key, el := range s.entries {
			if now > el.Value.(*item).expiration {
				s.order.Remove(el)
				delete(s.entries, key)
			}
		}
	}
}

// StartCleanup launches a goroutine that calls Cleanup on the given
// interval and exits when ctx is cancelled.
func (m *Memory) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
