package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache access metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"tier"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_evictions_total",
			Help: "Total number of entries evicted from the cache",
		},
		[]string{"tier", "reason"}, // reason: expired, lru, swept
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metadata_cache_entries",
			Help: "Current number of entries per tier",
		},
		[]string{"tier"},
	)

	CacheCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metadata_cache_capacity",
			Help: "Current effective capacity per tier",
		},
		[]string{"tier"},
	)

	// Factory (compute) metrics
	FactoryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_cache_factory_duration_seconds",
			Help:    "Duration of factory computations on cache miss",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier", "status"}, // status: success, failure
	)

	FactoryDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_factory_deduplicated_total",
			Help: "Total number of callers served by an already in-flight computation",
		},
		[]string{"tier"},
	)

	// Janitor metrics
	JanitorSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metadata_cache_janitor_sweep_duration_seconds",
			Help:    "Duration of janitor sweeps",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	JanitorSweptEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_janitor_swept_total",
			Help: "Total number of expired entries removed by the janitor",
		},
		[]string{"tier"},
	)

	JanitorEntryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_cache_janitor_entry_errors_total",
			Help: "Total number of entries skipped by the janitor due to errors",
		},
	)

	// Memory pressure metrics
	MemoryUsageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metadata_cache_memory_usage_bytes",
			Help: "Last sampled heap usage in bytes",
		},
	)

	CapacityAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_capacity_adjustments_total",
			Help: "Total number of capacity adjustments by the memory monitor",
		},
		[]string{"tier", "direction"}, // direction: shrink, restore
	)

	MemorySamplingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metadata_cache_memory_sampling_errors_total",
			Help: "Total number of failed memory usage samples",
		},
	)

	// Warming metrics
	WarmingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_warming_attempts_total",
			Help: "Total number of cache warming attempts",
		},
		[]string{"tier", "status"}, // status: success, failure, skipped
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metadata_cache_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_cache_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)
)
