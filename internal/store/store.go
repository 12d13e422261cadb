package store

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tunevault/metacache/internal/metrics"
)

// Entry holds a cached value and its bookkeeping timestamps. An entry
// whose ExpiresAt has passed is logically absent even while physically
// present: Get refuses to return it, and the janitor or insert-time
// eviction removes it later.
type Entry[V any] struct {
	Key            string
	Value          V
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time

	seq  uint64 // insertion order, final eviction tie-break
	elem *list.Element
}

func (e *Entry[V]) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Stats is a point-in-time snapshot of a store's counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithClock overrides the store's time source; for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) { s.now = now }
}

// Store is a thread-safe key to entry mapping with TTL expiry and
// LRU eviction. Recency is a doubly linked list with the most recently
// used entry at the front; entries that were never read sit in reverse
// insertion order, so the list tail is always the eviction victim the
// contract asks for: least recently accessed, earliest inserted on ties.
type Store[V any] struct {
	name       string
	defaultTTL time.Duration

	mu       sync.RWMutex
	entries  map[string]*Entry[V]
	order    *list.List // front = most recently used
	capacity int        // soft ceiling, mutable under pressure
	baseline int        // configured ceiling, capacity never exceeds it
	seq      uint64

	now func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a store for one cache tier. capacity is both the initial
// and the baseline ceiling.
func New[V any](name string, capacity int, defaultTTL time.Duration, opts ...Option[V]) *Store[V] {
	if capacity < 1 {
		capacity = 1
	}
	s := &Store[V]{
		name:       name,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*Entry[V]),
		order:      list.New(),
		capacity:   capacity,
		baseline:   capacity,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.CacheCapacity.WithLabelValues(name).Set(float64(capacity))
	return s
}

// Get retrieves a live value. Expired entries are treated as misses
// without being removed here; the read path only takes the read lock,
// recency promotion happens in a short write section afterwards.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	var value V
	if ok && !e.expired(now) {
		value = e.Value
	} else {
		ok = false
	}
	seq := uint64(0)
	if ok {
		seq = e.seq
	}
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(s.name).Inc()
		return zero, false
	}

	s.mu.Lock()
	if cur, still := s.entries[key]; still && cur.seq == seq {
		cur.LastAccessedAt = now
		s.order.MoveToFront(cur.elem)
	}
	s.mu.Unlock()

	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(s.name).Inc()
	return value, true
}

// Put inserts or overwrites an entry. A ttl of 0 means use the store's
// default TTL. Overwriting resets all timestamps. If the store ends up
// over capacity, entries are evicted until it fits.
func (s *Store[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.Value = value
		e.CreatedAt = now
		e.ExpiresAt = now.Add(ttl)
		e.LastAccessedAt = now
		s.order.MoveToFront(e.elem)
	} else {
		s.seq++
		e := &Entry[V]{
			Key:            key,
			Value:          value,
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			LastAccessedAt: now,
			seq:            s.seq,
		}
		e.elem = s.order.PushFront(e)
		s.entries[key] = e
	}

	s.evictLocked(now)
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(len(s.entries)))
}

// evictLocked removes entries until the store fits its capacity.
// Expired entries go first regardless of recency, least recent of them
// first; after that the list tail is removed, which is the least
// recently accessed entry, earliest inserted on access-time ties.
func (s *Store[V]) evictLocked(now time.Time) {
	for len(s.entries) > s.capacity {
		if elem := s.oldestExpiredLocked(now); elem != nil {
			s.removeLocked(elem.Value.(*Entry[V]), "expired")
			continue
		}
		back := s.order.Back()
		if back == nil {
			return
		}
		s.removeLocked(back.Value.(*Entry[V]), "lru")
	}
}

func (s *Store[V]) oldestExpiredLocked(now time.Time) *list.Element {
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*Entry[V]).expired(now) {
			return elem
		}
	}
	return nil
}

func (s *Store[V]) removeLocked(e *Entry[V], reason string) {
	delete(s.entries, e.Key)
	s.order.Remove(e.elem)
	s.evictions.Add(1)
	metrics.CacheEvictions.WithLabelValues(s.name, reason).Inc()
}

// Invalidate removes an entry, reporting whether anything was removed.
func (s *Store[V]) Invalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	s.order.Remove(e.elem)
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(len(s.entries)))
	return true
}

// Count returns the number of physically present entries, including any
// expired ones not yet swept.
func (s *Store[V]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry[V])
	s.order.Init()
	metrics.CacheEntries.WithLabelValues(s.name).Set(0)
}

// Name returns the tier name this store backs.
func (s *Store[V]) Name() string { return s.name }

// Capacity returns the current effective capacity.
func (s *Store[V]) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Baseline returns the configured capacity ceiling.
func (s *Store[V]) Baseline() int { return s.baseline }

// SetCapacity changes the effective capacity, clamped to [1, baseline].
// No entries are evicted here; the new ceiling takes effect lazily on
// the next Put.
func (s *Store[V]) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	if n > s.baseline {
		n = s.baseline
	}
	s.mu.Lock()
	s.capacity = n
	s.mu.Unlock()
	metrics.CacheCapacity.WithLabelValues(s.name).Set(float64(n))
}

// ExpiredKeys returns a snapshot of keys whose entries have expired as
// of now. Taken under the read lock so a sweep never stalls writers for
// the whole scan.
func (s *Store[V]) ExpiredKeys(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k, e := range s.entries {
		if e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// RemoveIfExpired deletes key only if its entry is still expired,
// re-checking under the write lock. Removing an already removed or
// since-refreshed key is a no-op, which keeps sweeps idempotent.
func (s *Store[V]) RemoveIfExpired(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.expired(now) {
		return false
	}
	s.removeLocked(e, "swept")
	metrics.CacheEntries.WithLabelValues(s.name).Set(float64(len(s.entries)))
	return true
}

// Stats returns a snapshot of the store's counters.
func (s *Store[V]) Stats() Stats {
	s.mu.RLock()
	size := len(s.entries)
	capacity := s.capacity
	s.mu.RUnlock()

	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Size:      size,
		Capacity:  capacity,
	}
}
