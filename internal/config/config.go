package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tunevault/metacache/internal/logger"
)

// Config holds cache configuration derived from environment variables.
type Config struct {
	// Core cache settings
	MetadataCacheTTLHours       int  // base TTL applied to the track tier
	MaxCacheSize                int  // combined baseline entry budget across tiers
	EnableMemoryPressureAdjust  bool // enable the memory pressure monitor
	EnableCacheWarming          bool // track access patterns and allow WarmTop
	CacheCleanupIntervalMinutes int  // janitor sweep interval

	// Memory pressure monitor
	MemoryThresholdBytes uint64        // heap usage above this triggers capacity shrink
	MemoryCheckInterval  time.Duration // sampling interval
	MemoryShrinkFactor   float64       // capacity multiplier under pressure

	// Warming throttle
	WarmRatePerSecond float64 // pre-population requests per second
	WarmBurst         int     // burst size for the warming limiter

	// Circuit breaker for external metadata factories
	ExternalBreakerFailures int           // consecutive failures before opening
	ExternalBreakerCooldown time.Duration // time before a half-open probe

	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	DebugListenAddr   string  // local listener for /metrics and stats; empty disables
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
}

// Recognized ranges. Out-of-range values are clamped and logged rather
// than rejected, so a bad host setting never prevents startup.
const (
	MinTTLHours = 1
	MaxTTLHours = 72

	MinCacheSize = 100
	MaxCacheSize = 10000

	MinCleanupMinutes = 1
	MaxCleanupMinutes = 60

	MinMemoryCheckSeconds = 30
	MaxMemoryCheckSeconds = 60
)

var cached *Config

// Load reads env vars once and caches them. A .env file is honored when
// present, falling back to the process environment otherwise.
func Load() *Config {
	if cached != nil {
		return cached
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment")
	}

	cached = &Config{
		MetadataCacheTTLHours:       clampInt("METADATA_CACHE_TTL_HOURS", 24, MinTTLHours, MaxTTLHours),
		MaxCacheSize:                clampInt("MAX_CACHE_SIZE", 1000, MinCacheSize, MaxCacheSize),
		EnableMemoryPressureAdjust:  getEnvAsBool("ENABLE_MEMORY_PRESSURE_ADJUSTMENT", true),
		EnableCacheWarming:          getEnvAsBool("ENABLE_CACHE_WARMING", false),
		CacheCleanupIntervalMinutes: clampInt("CACHE_CLEANUP_INTERVAL_MINUTES", 5, MinCleanupMinutes, MaxCleanupMinutes),

		MemoryThresholdBytes: uint64(getEnvAsInt("MEMORY_PRESSURE_THRESHOLD_MB", 500)) * 1024 * 1024,
		MemoryCheckInterval:  time.Duration(clampInt("MEMORY_CHECK_INTERVAL_SECONDS", 45, MinMemoryCheckSeconds, MaxMemoryCheckSeconds)) * time.Second,
		MemoryShrinkFactor:   getEnvAsFloat("MEMORY_SHRINK_FACTOR", 0.5),

		WarmRatePerSecond: getEnvAsFloat("WARM_RATE_PER_SECOND", 2.0),
		WarmBurst:         getEnvAsInt("WARM_BURST", 1),

		ExternalBreakerFailures: getEnvAsInt("EXTERNAL_BREAKER_FAILURES", 5),
		ExternalBreakerCooldown: time.Duration(getEnvAsInt("EXTERNAL_BREAKER_COOLDOWN_SECONDS", 60)) * time.Second,

		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		DebugListenAddr:   strings.TrimSpace(os.Getenv("DEBUG_LISTEN_ADDR")),
		OTELEnabled:       getEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    getEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.MemoryShrinkFactor <= 0 || cached.MemoryShrinkFactor >= 1 {
		logger.Warn("MEMORY_SHRINK_FACTOR out of range, using default",
			"value", cached.MemoryShrinkFactor, "default", 0.5)
		cached.MemoryShrinkFactor = 0.5
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// TierTTL derives the per-tier TTL from the base TTL. The track tier uses
// the base value; album and external metadata change less often, so they
// get 2x and 3x, capped at the maximum TTL.
func (c *Config) TierTTL(multiplier int) time.Duration {
	hours := c.MetadataCacheTTLHours * multiplier
	if hours > MaxTTLHours {
		hours = MaxTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// CleanupInterval returns the janitor sweep interval.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CacheCleanupIntervalMinutes) * time.Minute
}

// clampInt reads an integer env var and clamps it to [min, max],
// logging when a configured value is out of range.
func clampInt(name string, defaultVal, min, max int) int {
	v := getEnvAsInt(name, defaultVal)
	if v < min {
		logger.Warn("Config value below minimum, clamping", "key", name, "value", v, "min", min)
		return min
	}
	if v > max {
		logger.Warn("Config value above maximum, clamping", "key", name, "value", v, "max", max)
		return max
	}
	return v
}

// getEnvAsBool parses a boolean environment variable with a default.
func getEnvAsBool(key string, defaultVal bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
func getEnvAsInt(name string, defaultVal int) int {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}

// getEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			return val
		}
	}
	return defaultVal
}
