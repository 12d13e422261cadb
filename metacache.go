// Package metacache is a tiered, in-process TTL+LRU cache for game
// soundtrack metadata: per-track tags, album info and external
// Discogs/MusicBrainz lookup results. It is safe for concurrent use and
// owns its own background maintenance (expiry janitor, memory pressure
// monitor), started in New and stopped in Close.
package metacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tunevault/metacache/internal/circuitbreaker"
	"github.com/tunevault/metacache/internal/config"
	"github.com/tunevault/metacache/internal/debugserver"
	"github.com/tunevault/metacache/internal/errorreporting"
	"github.com/tunevault/metacache/internal/janitor"
	"github.com/tunevault/metacache/internal/logger"
	"github.com/tunevault/metacache/internal/memwatch"
	"github.com/tunevault/metacache/internal/metrics"
	"github.com/tunevault/metacache/internal/store"
	"github.com/tunevault/metacache/internal/tracing"
	"github.com/tunevault/metacache/internal/warming"
)

// Factory computes a value on cache miss. It may hit the filesystem or
// an external metadata API; its error is propagated to every caller
// awaiting the key and is never cached.
type Factory func(ctx context.Context) (Value, error)

// Stats reports a tier's counters.
type Stats struct {
	HitCount        uint64
	MissCount       uint64
	EvictionCount   uint64
	CurrentSize     int
	CurrentCapacity int
}

// Service is the cache surface metadata consumers depend on. *Cache
// implements it; MockService is available for consumer tests.
type Service interface {
	Get(tier Kind, key string) (Value, bool)
	Put(tier Kind, key string, value Value, ttl time.Duration) error
	GetOrCompute(ctx context.Context, tier Kind, key string, ttl time.Duration, factory Factory) (Value, error)
	Invalidate(tier Kind, key string) bool
	Stats(tier Kind) (Stats, error)
}

// Tier capacity weights over the combined MaxCacheSize budget. Track
// metadata dominates request volume; album and external entries are
// fewer but longer lived.
var tierWeights = map[Kind]float64{
	KindTrack:    0.5,
	KindAlbum:    0.3,
	KindExternal: 0.2,
}

const minTierCapacity = 16

type tier struct {
	name       Kind
	store      *store.Store[Value]
	defaultTTL time.Duration
	breaker    *circuitbreaker.CircuitBreaker // external tier only
}

// Cache is the tiered metadata cache facade.
type Cache struct {
	cfg   *config.Config
	tiers map[Kind]*tier
	order []Kind

	flight    singleflight.Group
	tracker   map[Kind]*warming.Tracker // nil when warming is disabled
	warmLimit *rate.Limiter

	janitor *janitor.Janitor
	monitor *memwatch.Monitor
	debug   *debugserver.Server

	cancel          context.CancelFunc
	wg              sync.WaitGroup
	shutdownTracing func(context.Context) error
	closeOnce       sync.Once
	log             *slog.Logger
}

// New builds the cache from host configuration and starts its
// background tasks. Call Close at plugin unload.
func New(cfg *config.Config) (*Cache, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	logger.Init(cfg.LogLevel)

	if err := errorreporting.Init(cfg.SentryDSN, cfg.SentryEnvironment, cfg.SentryRelease); err != nil {
		logger.Warn("Sentry init failed, continuing without error reporting", "error", err)
	}

	shutdownTracing, err := tracing.Init(cfg.OTELEnabled, cfg.OTELEndpoint, cfg.OTELSampleRate, cfg.SentryRelease)
	if err != nil {
		logger.Warn("Tracing init failed, continuing without tracing", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	c := &Cache{
		cfg:             cfg,
		tiers:           make(map[Kind]*tier),
		order:           []Kind{KindTrack, KindAlbum, KindExternal},
		warmLimit:       rate.NewLimiter(rate.Limit(cfg.WarmRatePerSecond), max(cfg.WarmBurst, 1)),
		shutdownTracing: shutdownTracing,
		log:             logger.WithComponent("metacache"),
	}

	ttlMultiplier := map[Kind]int{KindTrack: 1, KindAlbum: 2, KindExternal: 3}
	for _, name := range c.order {
		capacity := int(float64(cfg.MaxCacheSize) * tierWeights[name])
		if capacity < minTierCapacity {
			capacity = minTierCapacity
		}
		t := &tier{
			name:       name,
			store:      store.New[Value](string(name), capacity, cfg.TierTTL(ttlMultiplier[name])),
			defaultTTL: cfg.TierTTL(ttlMultiplier[name]),
		}
		if name == KindExternal {
			t.breaker = circuitbreaker.New(circuitbreaker.Config{
				Name:             "external-metadata",
				FailureThreshold: cfg.ExternalBreakerFailures,
				Timeout:          cfg.ExternalBreakerCooldown,
			})
		}
		c.tiers[name] = t
	}

	if cfg.EnableCacheWarming {
		c.tracker = make(map[Kind]*warming.Tracker, len(c.order))
		for _, name := range c.order {
			c.tracker[name] = warming.NewTracker(warming.DefaultWindow)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	targets := make([]janitor.Target, 0, len(c.order))
	for _, name := range c.order {
		targets = append(targets, c.tiers[name].store)
	}
	c.janitor = janitor.New(targets, cfg.CleanupInterval())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.janitor.Run(ctx)
	}()

	if cfg.EnableMemoryPressureAdjust {
		watched := make([]memwatch.Tier, 0, len(c.order))
		for _, name := range c.order {
			watched = append(watched, c.tiers[name].store)
		}
		c.monitor = memwatch.New(watched, cfg.MemoryCheckInterval, cfg.MemoryThresholdBytes, cfg.MemoryShrinkFactor, nil)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.monitor.Run(ctx)
		}()
	}

	if cfg.DebugListenAddr != "" {
		c.debug = debugserver.New(cfg.DebugListenAddr, c)
		c.debug.Start()
	}

	c.log.Info("Metadata cache initialized",
		"max_size", cfg.MaxCacheSize,
		"ttl_hours", cfg.MetadataCacheTTLHours,
		"cleanup_interval", cfg.CleanupInterval(),
		"memory_adjustment", cfg.EnableMemoryPressureAdjust,
		"warming", cfg.EnableCacheWarming)

	return c, nil
}

// Close stops the janitor, the memory monitor and the debug server, and
// flushes observability sinks. Safe to call more than once.
func (c *Cache) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		if c.debug != nil {
			err = errors.Join(err, c.debug.Shutdown(ctx))
		}
		err = errors.Join(err, c.shutdownTracing(ctx))
		errorreporting.Flush(2 * time.Second)
		c.log.Info("Metadata cache closed")
	})
	return err
}

// Get returns a live cached value.
func (c *Cache) Get(tierName Kind, key string) (Value, bool) {
	t, ok := c.tiers[tierName]
	if !ok {
		return nil, false
	}
	c.recordAccess(tierName, key)
	return t.store.Get(key)
}

// Put stores value with the given TTL (0 means the tier default). The
// value's kind must match the tier.
func (c *Cache) Put(tierName Kind, key string, value Value, ttl time.Duration) error {
	t, ok := c.tiers[tierName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tierName)
	}
	if value == nil {
		return fmt.Errorf("put %s/%s: %w", tierName, key, ErrNilValue)
	}
	if value.MetadataKind() != tierName {
		return fmt.Errorf("%w: %s into %s", ErrKindMismatch, value.MetadataKind(), tierName)
	}
	t.store.Put(key, value, ttl)
	return nil
}

// GetOrCompute returns the cached value for key, computing it with
// factory on miss. Concurrent calls for the same key share a single
// factory invocation; every waiter receives that invocation's value or
// error. Failed computations are never cached. A caller whose ctx ends
// stops waiting, but the computation itself continues and populates the
// cache for the next caller.
func (c *Cache) GetOrCompute(ctx context.Context, tierName Kind, key string, ttl time.Duration, factory Factory) (Value, error) {
	t, ok := c.tiers[tierName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tierName)
	}
	c.recordAccess(tierName, key)
	return c.getOrCompute(ctx, t, key, ttl, factory)
}

func (c *Cache) getOrCompute(ctx context.Context, t *tier, key string, ttl time.Duration, factory Factory) (Value, error) {
	if v, ok := t.store.Get(key); ok {
		return v, nil
	}

	flightKey := string(t.name) + "\x00" + key
	computeCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (interface{}, error) {
		// Another waiter may have populated the entry while this call
		// was queued behind a finishing flight.
		if v, ok := t.store.Get(key); ok {
			return v, nil
		}
		return c.compute(computeCtx, t, key, ttl, factory)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.FactoryDeduplicated.WithLabelValues(string(t.name)).Inc()
		}
		return res.Val.(Value), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) compute(ctx context.Context, t *tier, key string, ttl time.Duration, factory Factory) (Value, error) {
	ctx, span := tracing.StartSpan(ctx, "metacache.compute",
		trace.WithAttributes(attribute.String("cache.tier", string(t.name))))
	defer span.End()

	start := time.Now()
	var value Value
	var err error
	if t.breaker != nil {
		err = t.breaker.Call(func() error {
			var ferr error
			value, ferr = factory(ctx)
			return ferr
		})
	} else {
		value, err = factory(ctx)
	}

	status := "success"
	if err == nil && value == nil {
		err = ErrNilValue
	}
	if err == nil && value.MetadataKind() != t.name {
		err = fmt.Errorf("%w: %s into %s", ErrKindMismatch, value.MetadataKind(), t.name)
	}
	if err != nil {
		status = "failure"
		span.RecordError(err)
		metrics.FactoryDuration.WithLabelValues(string(t.name), status).Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("compute %s/%s: %w", t.name, key, err)
	}

	t.store.Put(key, value, ttl)
	metrics.FactoryDuration.WithLabelValues(string(t.name), status).Observe(time.Since(start).Seconds())
	return value, nil
}

// Invalidate removes key from the tier, reporting whether an entry was
// removed.
func (c *Cache) Invalidate(tierName Kind, key string) bool {
	t, ok := c.tiers[tierName]
	if !ok {
		return false
	}
	return t.store.Invalidate(key)
}

// Stats returns the tier's counters.
func (c *Cache) Stats(tierName Kind) (Stats, error) {
	t, ok := c.tiers[tierName]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownTier, tierName)
	}
	st := t.store.Stats()
	return Stats{
		HitCount:        st.Hits,
		MissCount:       st.Misses,
		EvictionCount:   st.Evictions,
		CurrentSize:     st.Size,
		CurrentCapacity: st.Capacity,
	}, nil
}

func (c *Cache) recordAccess(tierName Kind, key string) {
	if c.tracker == nil {
		return
	}
	if tr, ok := c.tracker[tierName]; ok {
		tr.Record(key)
	}
}

// TierNames lists the configured tiers; used by the debug server.
func (c *Cache) TierNames() []string {
	names := make([]string, len(c.order))
	for i, k := range c.order {
		names[i] = string(k)
	}
	return names
}

// TierStats returns raw store stats for one tier; used by the debug server.
func (c *Cache) TierStats(name string) (store.Stats, bool) {
	t, ok := c.tiers[Kind(name)]
	if !ok {
		return store.Stats{}, false
	}
	return t.store.Stats(), true
}

// ClearTier drops every entry in one tier; used by the debug server.
func (c *Cache) ClearTier(name string) bool {
	t, ok := c.tiers[Kind(name)]
	if !ok {
		return false
	}
	t.store.Clear()
	return true
}
