package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Cache. Values are JSON encoded so callers observe
// the same copy semantics as with Redis.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	// Err, when set, is returned by every operation to simulate an outage.
	Err error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	e, ok := m.live(key)
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(e.data, dst)
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}

	var n int64
	e, ok := m.live(key)
	if ok {
		if err := json.Unmarshal(e.data, &n); err != nil {
			return 0, fmt.Errorf("cache incr %s: value is not an integer", key)
		}
	} else if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	n++
	e.data, _ = json.Marshal(n)
	m.entries[key] = e
	return n, nil
}

func (m *Memory) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Has reports whether key holds a live value (test helper).
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

// Keys returns every live key (test helper).
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if _, ok := m.live(k); ok {
			out = append(out, k)
		}
	}
	return out
}

// SetClock replaces the time source (test helper).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
