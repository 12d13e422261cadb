package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/tunevault/metacache/internal/errorreporting"
	"github.com/tunevault/metacache/internal/logger"
	"github.com/tunevault/metacache/internal/metrics"
)

const defaultBatchSize = 64

// Target is a tier store the janitor sweeps.
type Target interface {
	Name() string
	ExpiredKeys(now time.Time) []string
	RemoveIfExpired(key string, now time.Time) bool
}

// Janitor periodically removes expired entries from its targets so
// space is reclaimed before capacity pressure forces it.
type Janitor struct {
	targets   []Target
	interval  time.Duration
	batchSize int
	stop      chan struct{}
	now       func() time.Time
	log       *slog.Logger
}

// New creates a janitor sweeping the given targets on the given interval.
func New(targets []Target, interval time.Duration) *Janitor {
	return &Janitor{
		targets:   targets,
		interval:  interval,
		batchSize: defaultBatchSize,
		stop:      make(chan struct{}),
		now:       time.Now,
		log:       logger.WithComponent("janitor"),
	}
}

// Run drives the sweep loop until the context ends or Stop is called.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Debug("Janitor stopped by context")
			return
		case <-j.stop:
			j.log.Debug("Janitor stopped by signal")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Stop gracefully stops the sweep loop.
func (j *Janitor) Stop() {
	close(j.stop)
}

// Sweep removes expired entries from every target. The expired set is
// snapshotted first, then removed in small batches with a yield between
// them, so no single cache call ever waits on a full-table scan.
// Running a sweep twice in a row removes nothing the second time.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := time.Now()
	total := 0
	for _, t := range j.targets {
		total += j.sweepTarget(ctx, t)
	}
	metrics.JanitorSweepDuration.Observe(time.Since(start).Seconds())

	if total > 0 {
		j.log.Debug("Swept expired cache entries", "count", total)
	}
	return total
}

func (j *Janitor) sweepTarget(ctx context.Context, t Target) int {
	now := j.now()
	keys := t.ExpiredKeys(now)
	removed := 0

	for i, key := range keys {
		ok, err := j.removeOne(t, key, now)
		if err != nil {
			metrics.JanitorEntryErrors.Inc()
			errorreporting.CaptureError(err)
			j.log.Warn("Skipping cache entry during sweep", "tier", t.Name(), "error", err)
			continue
		}
		if ok {
			removed++
		}

		if (i+1)%j.batchSize == 0 {
			select {
			case <-ctx.Done():
				return removed
			default:
			}
			runtime.Gosched()
		}
	}

	if removed > 0 {
		metrics.JanitorSweptEntries.WithLabelValues(t.Name()).Add(float64(removed))
	}
	return removed
}

// removeOne isolates a single removal so a corrupted entry cannot abort
// the rest of the sweep.
func (j *Janitor) removeOne(t Target, key string, now time.Time) (removed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep %s: entry %q: %v", t.Name(), key, r)
		}
	}()
	return t.RemoveIfExpired(key, now), nil
}
