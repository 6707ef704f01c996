package jobrecord

import (
	"context"
	"sync"
	"time"

	"github.com/jonymoraes/mediaserver/internal/models"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an in-process record store for kind.
func NewMemory(kind models.MediaKind) *Store {
	return newStore(kind, &memoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	})
}

func (b *memoryBackend) live(key string) (memoryEntry, bool) {
	e, ok := b.entries[key]
	if ok && !b.now().Before(e.expiresAt) {
		delete(b.entries, key)
		return e, false
	}
	return e, ok
}

func (b *memoryBackend) load(_ context.Context, key string) (*Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.live(key)
	if !ok {
		return nil, errMissing
	}
	r := e.record
	return &r, nil
}

func (b *memoryBackend) create(_ context.Context, key string, r *Record, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = memoryEntry{record: *r, expiresAt: b.now().Add(ttl)}
	return nil
}

func (b *memoryBackend) modify(_ context.Context, key string, fn func(*Record) (bool, error)) (*Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.live(key)
	if !ok {
		return nil, errMissing
	}
	r := e.record
	changed, err := fn(&r)
	if err != nil {
		return nil, err
	}
	if changed {
		e.record = r
		b.entries[key] = e
	}
	return &r, nil
}

func (b *memoryBackend) remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}
