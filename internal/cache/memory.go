package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryEntries = 4096

type memoryEntry struct {
	value     []byte
	kind      Kind
	expiresAt time.Time
}

// MemoryStore is a size-bounded in-process Store. Least recently used
// entries are evicted once the bound is reached.
type MemoryStore struct {
	items *lru.Cache[string, memoryEntry]
	now   func() time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewMemoryStore creates a memory store holding at most size entries
// (4096 when size <= 0).
func NewMemoryStore(size int, opts ...Option) (*MemoryStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if size <= 0 {
		size = defaultMemoryEntries
	}

	items, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	s := &MemoryStore{
		items:     items,
		now:       o.now,
		stopSweep: make(chan struct{}),
	}
	if o.sweepInterval > 0 {
		go s.sweep(o.sweepInterval)
	}
	return s, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}

	if expired(entry.expiresAt, s.now()) {
		// Only drop the row we looked at; a concurrent Put may have replaced it.
		if cur, ok := s.items.Peek(key); ok && cur.expiresAt.Equal(entry.expiresAt) {
			s.items.Remove(key)
		}
		return nil, false, nil
	}

	return append([]byte(nil), entry.value...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, kind Kind, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		s.items.Remove(key)
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.items.Add(key, memoryEntry{
		value:     valueCopy,
		kind:      kind,
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// PurgeExpired removes every expired entry and reports how many were dropped.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.now()
	removed := 0
	for _, k := range s.items.Keys() {
		if e, ok := s.items.Peek(k); ok && expired(e.expiresAt, now) {
			s.items.Remove(k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.PurgeExpired(context.Background())
		case <-s.stopSweep:
			return
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
	return nil
}

// Len returns the number of entries held, expired ones included.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// Clear drops all entries.
func (s *MemoryStore) Clear() {
	s.items.Purge()
}
