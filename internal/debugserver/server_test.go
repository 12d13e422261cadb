package debugserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tunevault/metacache/internal/store"
)

type fakeProvider struct {
	stats   map[string]store.Stats
	cleared []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stats: map[string]store.Stats{
			"track": {Hits: 10, Misses: 4, Evictions: 1, Size: 6, Capacity: 50},
			"album": {Hits: 2, Misses: 1, Size: 1, Capacity: 30},
		},
	}
}

func (f *fakeProvider) TierNames() []string { return []string{"track", "album"} }

func (f *fakeProvider) TierStats(name string) (store.Stats, bool) {
	st, ok := f.stats[name]
	return st, ok
}

func (f *fakeProvider) ClearTier(name string) bool {
	if _, ok := f.stats[name]; !ok {
		return false
	}
	f.cleared = append(f.cleared, name)
	return true
}

func TestHealthz(t *testing.T) {
	s := New("127.0.0.1:0", newFakeProvider())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestCacheStats(t *testing.T) {
	s := New("127.0.0.1:0", newFakeProvider())

	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["track"]["hits"] != 10 {
		t.Errorf("Expected 10 track hits, got %v", body["track"]["hits"])
	}
	if body["album"]["capacity"] != 30 {
		t.Errorf("Expected album capacity 30, got %v", body["album"]["capacity"])
	}
}

func TestInvalidateSingleTier(t *testing.T) {
	p := newFakeProvider()
	s := New("127.0.0.1:0", p)

	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate?tier=track", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(p.cleared) != 1 || p.cleared[0] != "track" {
		t.Errorf("Expected only track cleared, got %v", p.cleared)
	}
}

func TestInvalidateAllTiers(t *testing.T) {
	p := newFakeProvider()
	s := New("127.0.0.1:0", p)

	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(p.cleared) != 2 {
		t.Errorf("Expected both tiers cleared, got %v", p.cleared)
	}
}

func TestInvalidateUnknownTier(t *testing.T) {
	s := New("127.0.0.1:0", newFakeProvider())

	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate?tier=bogus", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown tier, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New("127.0.0.1:0", newFakeProvider())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", rec.Code)
	}
}
