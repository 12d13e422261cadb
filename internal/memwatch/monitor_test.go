package memwatch

import (
	"errors"
	"testing"
	"time"
)

const (
	mb        = uint64(1024 * 1024)
	threshold = 500 * mb
)

func TestAdjustCapacity_ShrinksUnderPressure(t *testing.T) {
	got := AdjustCapacity(600*mb, threshold, 1000, 1000, 0.5)
	if got != 500 {
		t.Errorf("Expected 500, got %d", got)
	}
}

func TestAdjustCapacity_ShrinkFloors(t *testing.T) {
	// Repeated pressure cycles stop at an eighth of the baseline.
	cap := 1000
	for i := 0; i < 10; i++ {
		cap = AdjustCapacity(600*mb, threshold, cap, 1000, 0.5)
	}
	if cap != 125 {
		t.Errorf("Expected floor 125, got %d", cap)
	}

	cap = 4
	for i := 0; i < 5; i++ {
		cap = AdjustCapacity(600*mb, threshold, cap, 4, 0.5)
	}
	if cap != 1 {
		t.Errorf("Expected floor 1 for tiny baselines, got %d", cap)
	}
}

func TestAdjustCapacity_RestoresTowardBaseline(t *testing.T) {
	got := AdjustCapacity(100*mb, threshold, 250, 1000, 0.5)
	if got != 500 {
		t.Errorf("Expected 500, got %d", got)
	}

	// Restore never exceeds the baseline.
	got = AdjustCapacity(100*mb, threshold, 800, 1000, 0.5)
	if got != 1000 {
		t.Errorf("Expected 1000, got %d", got)
	}
	got = AdjustCapacity(100*mb, threshold, 1000, 1000, 0.5)
	if got != 1000 {
		t.Errorf("Expected capacity to stay at baseline, got %d", got)
	}
}

func TestAdjustCapacity_RoundTrip(t *testing.T) {
	cap := 1000

	// Pressure for three cycles, then recovery.
	for i := 0; i < 3; i++ {
		cap = AdjustCapacity(600*mb, threshold, cap, 1000, 0.5)
		if cap > 1000 {
			t.Fatalf("Capacity exceeded baseline during shrink: %d", cap)
		}
	}
	if cap != 125 {
		t.Fatalf("Expected 125 after three pressured cycles, got %d", cap)
	}

	for i := 0; i < 10; i++ {
		cap = AdjustCapacity(100*mb, threshold, cap, 1000, 0.5)
		if cap > 1000 {
			t.Fatalf("Capacity exceeded baseline during restore: %d", cap)
		}
	}
	if cap != 1000 {
		t.Errorf("Expected capacity restored to baseline, got %d", cap)
	}
}

// fakeTier records capacity adjustments.
type fakeTier struct {
	name     string
	capacity int
	baseline int
}

func (f *fakeTier) Name() string      { return f.name }
func (f *fakeTier) Capacity() int     { return f.capacity }
func (f *fakeTier) Baseline() int     { return f.baseline }
func (f *fakeTier) SetCapacity(n int) { f.capacity = n }

func TestMonitor_CycleAdjustsAllTiers(t *testing.T) {
	usage := 600 * mb
	tiers := []*fakeTier{
		{name: "track", capacity: 500, baseline: 500},
		{name: "album", capacity: 300, baseline: 300},
	}
	m := New([]Tier{tiers[0], tiers[1]}, time.Minute, threshold, 0.5, func() (uint64, error) {
		return usage, nil
	})

	m.Cycle()
	if tiers[0].capacity != 250 || tiers[1].capacity != 150 {
		t.Errorf("Expected shrink to 250/150, got %d/%d", tiers[0].capacity, tiers[1].capacity)
	}

	usage = 100 * mb
	m.Cycle()
	if tiers[0].capacity != 500 || tiers[1].capacity != 300 {
		t.Errorf("Expected restore to 500/300, got %d/%d", tiers[0].capacity, tiers[1].capacity)
	}
}

func TestMonitor_SamplingErrorSkipsCycle(t *testing.T) {
	tier := &fakeTier{name: "track", capacity: 500, baseline: 500}
	m := New([]Tier{tier}, time.Minute, threshold, 0.5, func() (uint64, error) {
		return 0, errors.New("platform API unavailable")
	})

	m.Cycle()

	if tier.capacity != 500 {
		t.Errorf("Expected capacity untouched on sampling error, got %d", tier.capacity)
	}
}

func TestRuntimeSample(t *testing.T) {
	usage, err := RuntimeSample()
	if err != nil {
		t.Fatalf("RuntimeSample failed: %v", err)
	}
	if usage == 0 {
		t.Error("Expected non-zero heap usage")
	}
}
