package warming

import (
	"testing"
	"time"
)

func trackerAt(window time.Duration, now *time.Time) *Tracker {
	tr := NewTracker(window)
	tr.now = func() time.Time { return *now }
	return tr
}

func TestTracker_RecordAndCount(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(24*time.Hour, &now)

	tr.Record("a")
	tr.Record("a")
	tr.Record("b")

	if got := tr.Count("a"); got != 2 {
		t.Errorf("Expected count 2, got %d", got)
	}
	if got := tr.Count("b"); got != 1 {
		t.Errorf("Expected count 1, got %d", got)
	}
	if got := tr.Count("missing"); got != 0 {
		t.Errorf("Expected count 0, got %d", got)
	}
}

func TestTracker_WindowRollsOver(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(24*time.Hour, &now)

	tr.Record("a")
	tr.Record("a")

	now = now.Add(25 * time.Hour)

	// Counting past the window drops the stale record.
	if got := tr.Count("a"); got != 0 {
		t.Errorf("Expected stale record dropped, got %d", got)
	}

	// A new access starts a fresh window.
	tr.Record("a")
	if got := tr.Count("a"); got != 1 {
		t.Errorf("Expected fresh window count 1, got %d", got)
	}
}

func TestTracker_TopKeys(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(24*time.Hour, &now)

	for i := 0; i < 3; i++ {
		tr.Record("hot")
	}
	for i := 0; i < 2; i++ {
		tr.Record("warm")
	}
	tr.Record("cold")

	top := tr.TopKeys(2)
	if len(top) != 2 || top[0] != "hot" || top[1] != "warm" {
		t.Errorf("Expected [hot warm], got %v", top)
	}

	// Asking for more keys than tracked returns what exists.
	if got := tr.TopKeys(10); len(got) != 3 {
		t.Errorf("Expected 3 keys, got %v", got)
	}
	if tr.TopKeys(0) != nil {
		t.Error("Expected nil for n=0")
	}
}

func TestTracker_TopKeysTieBreakDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(24*time.Hour, &now)

	tr.Record("zeta")
	tr.Record("alpha")
	tr.Record("mid")

	top := tr.TopKeys(3)
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, top)
		}
	}
}

func TestTracker_TopKeysDropsStale(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(24*time.Hour, &now)

	tr.Record("old")
	now = now.Add(25 * time.Hour)
	tr.Record("fresh")

	top := tr.TopKeys(10)
	if len(top) != 1 || top[0] != "fresh" {
		t.Errorf("Expected only fresh key, got %v", top)
	}
	if tr.Len() != 1 {
		t.Errorf("Expected stale record dropped from tracker, len=%d", tr.Len())
	}
}
