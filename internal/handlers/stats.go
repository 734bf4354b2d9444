package handlers

import (
	"convlogger/internal/jobs"
	"convlogger/internal/services"

	"github.com/gofiber/fiber/v2"
)

// StatsHandler handles dashboard and runtime stats HTTP requests
type StatsHandler struct {
	dashboard *services.DashboardService
	pool      *services.RequestPool
	cache     *services.TTLCache
	scheduler *jobs.Scheduler
}

// NewStatsHandler creates a new stats handler. scheduler may be nil when
// background jobs are disabled.
func NewStatsHandler(dashboard *services.DashboardService, pool *services.RequestPool, cache *services.TTLCache, scheduler *jobs.Scheduler) *StatsHandler {
	return &StatsHandler{
		dashboard: dashboard,
		pool:      pool,
		cache:     cache,
		scheduler: scheduler,
	}
}

// Dashboard returns the aggregate usage snapshot
// GET /api/stats
func (h *StatsHandler) Dashboard(c *fiber.Ctx) error {
	return c.JSON(h.dashboard.Snapshot(c.Context()))
}

// Runtime returns in-process counters: pool, cache, and scheduled jobs
// GET /api/stats/runtime
func (h *StatsHandler) Runtime(c *fiber.Ctx) error {
	payload := fiber.Map{
		"pool":  h.pool.Stats(),
		"cache": h.cache.Stats(),
	}
	if h.scheduler != nil {
		payload["jobs"] = h.scheduler.Status()
	}
	return c.JSON(payload)
}
