package warming

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the rolling window access counts are kept over.
const DefaultWindow = 24 * time.Hour

type record struct {
	count       int
	windowStart time.Time
}

// Tracker counts key accesses within a rolling window. Records whose
// window has passed are dropped lazily, either when the key is touched
// again or when TopKeys takes a snapshot.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]*record
	now     func() time.Time
}

// NewTracker creates a tracker with the given window. A non-positive
// window falls back to DefaultWindow.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window:  window,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Record notes one access to key.
func (t *Tracker) Record(key string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key]
	if !ok || now.Sub(r.windowStart) > t.window {
		t.records[key] = &record{count: 1, windowStart: now}
		return
	}
	r.count++
}

// Count returns the access count for key within the current window.
func (t *Tracker) Count(key string) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key]
	if !ok {
		return 0
	}
	if now.Sub(r.windowStart) > t.window {
		delete(t.records, key)
		return 0
	}
	return r.count
}

// TopKeys returns up to n keys ordered by access count, most requested
// first, ties broken by key so the result is deterministic. Stale
// records are dropped as a side effect.
func (t *Tracker) TopKeys(n int) []string {
	if n <= 0 {
		return nil
	}
	now := t.now()

	t.mu.Lock()
	type kc struct {
		key   string
		count int
	}
	live := make([]kc, 0, len(t.records))
	for key, r := range t.records {
		if now.Sub(r.windowStart) > t.window {
			delete(t.records, key)
			continue
		}
		live = append(live, kc{key, r.count})
	}
	t.mu.Unlock()

	sort.Slice(live, func(i, j int) bool {
		if live[i].count != live[j].count {
			return live[i].count > live[j].count
		}
		return live[i].key < live[j].key
	})

	if n > len(live) {
		n = len(live)
	}
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = live[i].key
	}
	return keys
}

// Len returns the number of tracked keys, including not-yet-dropped
// stale records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
