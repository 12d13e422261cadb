package metacache

import (
	"context"

	"github.com/tunevault/metacache/internal/metrics"
)

// KeyFactory computes the value for one key during warming.
type KeyFactory func(ctx context.Context, key string) (Value, error)

// Warm pre-populates the tier with the given keys, best effort: already
// cached keys are skipped, computations are throttled, and every
// failure is swallowed after logging. Warming never feeds the access
// tracker, so pre-loading does not reinforce its own key selection.
func (c *Cache) Warm(ctx context.Context, tierName Kind, keys []string, factory KeyFactory) {
	t, ok := c.tiers[tierName]
	if !ok {
		c.log.Warn("Cache warming requested for unknown tier", "tier", string(tierName))
		return
	}

	for _, key := range keys {
		if _, cached := t.store.Get(key); cached {
			metrics.WarmingAttempts.WithLabelValues(string(tierName), "skipped").Inc()
			continue
		}
		if err := c.warmLimit.Wait(ctx); err != nil {
			return
		}

		key := key
		_, err := c.getOrCompute(ctx, t, key, 0, func(ctx context.Context) (Value, error) {
			return factory(ctx, key)
		})
		if err != nil {
			metrics.WarmingAttempts.WithLabelValues(string(tierName), "failure").Inc()
			c.log.Debug("Cache warming failed for key", "tier", string(tierName), "error", err)
			continue
		}
		metrics.WarmingAttempts.WithLabelValues(string(tierName), "success").Inc()
	}
}

// WarmTop pre-populates the tier with its n most requested keys from
// the rolling access window. A no-op unless warming is enabled.
func (c *Cache) WarmTop(ctx context.Context, tierName Kind, n int, factory KeyFactory) {
	if c.tracker == nil {
		return
	}
	tr, ok := c.tracker[tierName]
	if !ok {
		return
	}
	c.Warm(ctx, tierName, tr.TopKeys(n), factory)
}
