package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	MongoURI    string
	RedisURL    string
	APIKey      string // X-API-Key value for the ingestion/query surface
	Environment string

	// Query cache (in-process TTL cache)
	QueryCacheTTL      time.Duration // TTL for cached query results
	CacheSweepInterval time.Duration // periodic sweep of expired entries

	// Recent-records structure in Redis
	RecentLimit int           // bounded list size (trim to last N)
	RecentTTL   time.Duration // per-record expiry in the fast cache

	// Dashboard snapshot
	DashboardTTL time.Duration

	// Bounded concurrency client
	PoolMaxConcurrent int
	PoolCallTimeout   time.Duration

	// Session analyzer memoization
	SessionMetaTTL time.Duration

	// Retention
	RetentionEnabled bool
	RetentionDays    int
	RetentionCron    string // cron expression, validated at startup

	// Keyword lists for the lexical classifier
	KeywordsFile string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017/convlogger"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		APIKey:      getEnv("API_KEY", ""),
		Environment: getEnv("ENVIRONMENT", "development"),

		QueryCacheTTL:      getDurationEnv("QUERY_CACHE_TTL_SECONDS", 300),
		CacheSweepInterval: getDurationEnv("CACHE_SWEEP_INTERVAL_SECONDS", 120),

		RecentLimit: getIntEnv("CACHE_RECENT_LIMIT", 2000),
		RecentTTL:   getDurationEnv("CACHE_RECENT_TTL_SECONDS", 3600),

		DashboardTTL: getDurationEnv("DASHBOARD_CACHE_TTL_SECONDS", 60),

		PoolMaxConcurrent: getIntEnv("POOL_MAX_CONCURRENT", 10),
		PoolCallTimeout:   getDurationEnv("POOL_CALL_TIMEOUT_SECONDS", 30),

		SessionMetaTTL: getDurationEnv("SESSION_META_TTL_SECONDS", 600),

		RetentionEnabled: getBoolEnv("RETENTION_ENABLED", true),
		RetentionDays:    getIntEnv("RETENTION_DAYS", 90),
		RetentionCron:    getEnv("RETENTION_CRON", "0 * * * *"),

		KeywordsFile: getEnv("KEYWORDS_FILE", "keywords.yaml"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv reads a duration expressed in whole seconds.
func getDurationEnv(key string, defaultSeconds int) time.Duration {
	return time.Duration(getIntEnv(key, defaultSeconds)) * time.Second
}
