package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int           // Max requests per minute for all API endpoints
	GlobalAPIExpiration time.Duration // Expiration window

	// Ingestion limits (per IP). Logging hooks fire on every conversation
	// turn, so this runs well above interactive rates.
	IngestMax        int
	IngestExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 300/min = 5 req/sec - generous for dashboards and hooks
		GlobalAPIMax:        300,
		GlobalAPIExpiration: 1 * time.Minute,

		// Ingestion: 120/min = 2 records/sec sustained per client
		IngestMax:        120,
		IngestExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	// Allow environment overrides for tuning
	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_INGEST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.IngestMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.IngestMax = 600
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// IngestRateLimiter creates a rate limiter for the record ingestion endpoint
func IngestRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.IngestMax,
		Expiration: config.IngestExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ingest:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Ingest limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many records. Please batch or slow down.",
				"retry_after": int(config.IngestExpiration.Seconds()),
			})
		},
	})
}
