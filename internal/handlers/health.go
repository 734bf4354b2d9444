package handlers

import (
	"context"
	"time"

	"convlogger/internal/services"

	"github.com/gofiber/fiber/v2"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	store *services.MongoRecordStore
	redis *services.RedisService
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// fast cache tier is not configured.
func NewHealthHandler(store *services.MongoRecordStore, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{store: store, redis: redis}
}

// Handle responds with server health status. The server reports degraded,
// not down, while any tier is unreachable.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	checks := fiber.Map{}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			checks["mongodb"] = "unreachable"
			status = "degraded"
		} else {
			checks["mongodb"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "unreachable"
			status = "degraded"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
