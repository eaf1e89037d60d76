package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryKV used when Redis and the DB are both disabled
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Next(_ context.Context, key string, floor int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if e, ok := m.lookup(key); ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	if floor > cur {
		cur = floor
	}
	cur++
	m.data[key] = memEntry{value: strconv.FormatInt(cur, 10)}
	return cur, nil
}

// lookup drops expired entries; caller holds mu.
func (m *MemoryKV) lookup(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return memEntry{}, false
	}
	return e, true
}
