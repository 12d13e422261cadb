package memwatch

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/tunevault/metacache/internal/errorreporting"
	"github.com/tunevault/metacache/internal/logger"
	"github.com/tunevault/metacache/internal/metrics"
)

// SampleFunc reports current process heap usage in bytes. Injectable so
// the monitor can be tested without real memory pressure.
type SampleFunc func() (uint64, error)

// RuntimeSample reads live heap usage from the Go runtime.
func RuntimeSample() (uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, nil
}

// Tier is the capacity surface the monitor adjusts.
type Tier interface {
	Name() string
	Capacity() int
	Baseline() int
	SetCapacity(n int)
}

// AdjustCapacity computes a tier's next capacity from the sampled usage.
// Under pressure the current capacity shrinks by shrinkFactor per cycle,
// floored at an eighth of the baseline; once pressure subsides it grows
// back stepwise, never exceeding the baseline. Pure and deterministic.
func AdjustCapacity(usage, threshold uint64, current, baseline int, shrinkFactor float64) int {
	if baseline < 1 {
		baseline = 1
	}
	if current < 1 {
		current = 1
	}

	if usage >= threshold {
		next := int(float64(current) * shrinkFactor)
		floor := baseline / 8
		if floor < 1 {
			floor = 1
		}
		if next < floor {
			next = floor
		}
		return next
	}

	next := current * 2
	if next > baseline {
		next = baseline
	}
	return next
}

// Monitor periodically samples memory usage and adjusts tier capacities.
// Adjustments are lazy: the stores evict against the new ceiling on
// their next insert, never synchronously here.
type Monitor struct {
	sample       SampleFunc
	tiers        []Tier
	interval     time.Duration
	threshold    uint64
	shrinkFactor float64
	stop         chan struct{}
	log          *slog.Logger
}

// New creates a monitor over the given tiers. A nil sample function
// defaults to RuntimeSample.
func New(tiers []Tier, interval time.Duration, threshold uint64, shrinkFactor float64, sample SampleFunc) *Monitor {
	if sample == nil {
		sample = RuntimeSample
	}
	return &Monitor{
		sample:       sample,
		tiers:        tiers,
		interval:     interval,
		threshold:    threshold,
		shrinkFactor: shrinkFactor,
		stop:         make(chan struct{}),
		log:          logger.WithComponent("memwatch"),
	}
}

// Run drives the sampling loop until the context ends or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.Cycle()
		}
	}
}

// Stop ends the sampling loop.
func (m *Monitor) Stop() {
	close(m.stop)
}

// Cycle runs one sample-and-adjust pass. Sampling failures are logged
// and skipped; they never reach cache callers.
func (m *Monitor) Cycle() {
	usage, err := m.sample()
	if err != nil {
		m.log.Warn("Memory sampling failed, skipping adjustment cycle", "error", err)
		metrics.MemorySamplingErrors.Inc()
		errorreporting.CaptureError(err)
		return
	}
	metrics.MemoryUsageBytes.Set(float64(usage))

	for _, t := range m.tiers {
		current := t.Capacity()
		next := AdjustCapacity(usage, m.threshold, current, t.Baseline(), m.shrinkFactor)
		if next == current {
			continue
		}
		t.SetCapacity(next)

		direction := "restore"
		if next < current {
			direction = "shrink"
		}
		metrics.CapacityAdjustments.WithLabelValues(t.Name(), direction).Inc()
		m.log.Info("Adjusted tier capacity",
			"tier", t.Name(),
			"direction", direction,
			"from", current,
			"to", next,
			"usage_bytes", usage,
			"threshold_bytes", m.threshold)
	}
}
