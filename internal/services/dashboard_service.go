package services

import (
	"context"
	"log"
	"time"

	"convlogger/internal/models"
)

// StatsSource supplies the aggregate reads behind the dashboard.
type StatsSource interface {
	TotalCount(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	ProjectCounts(ctx context.Context) (map[string]int64, error)
	TokenCostTotals(ctx context.Context) (models.TokenUsage, float64, error)
}

// DashboardService computes the summary snapshot served to dashboards.
// Snapshots are cached briefly to spare the store repeated full scans, and
// an unreachable store degrades to zeroed fields, never to an error.
type DashboardService struct {
	source  StatsSource
	cache   *TTLCache
	ttl     time.Duration
	metrics *Metrics
}

// NewDashboardService creates the aggregator with the given snapshot TTL.
func NewDashboardService(source StatsSource, cache *TTLCache, ttl time.Duration) *DashboardService {
	return &DashboardService{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		metrics: GetMetrics(),
	}
}

// Snapshot returns the current aggregate statistics. Fresh cached snapshots
// are served as-is; otherwise every field is computed best-effort and a
// fully successful snapshot is cached for the next caller.
func (s *DashboardService) Snapshot(ctx context.Context) models.DashboardStats {
	if cached, found := s.cache.Get(dashboardCacheKey); found {
		if stats, ok := cached.(models.DashboardStats); ok {
			s.metrics.RecordCacheLookup("dashboard", true)
			return stats
		}
	}
	s.metrics.RecordCacheLookup("dashboard", false)

	now := time.Now().UTC()
	stats := models.DashboardStats{
		ProjectCounts: map[string]int64{},
		GeneratedAt:   now,
	}
	complete := true

	if total, err := s.source.TotalCount(ctx); err != nil {
		log.Printf("⚠️ [DASHBOARD] Total count failed: %v", err)
		s.metrics.RecordTierError("mongo")
		complete = false
	} else {
		stats.TotalRecords = total
	}

	if counts, err := s.source.ProjectCounts(ctx); err != nil {
		log.Printf("⚠️ [DASHBOARD] Project counts failed: %v", err)
		complete = false
	} else if counts != nil {
		stats.ProjectCounts = counts
	}

	if usage, cost, err := s.source.TokenCostTotals(ctx); err != nil {
		log.Printf("⚠️ [DASHBOARD] Token totals failed: %v", err)
		complete = false
	} else {
		stats.TokenTotals = usage
		stats.TotalCostUSD = cost
	}

	if count, err := s.source.CountSince(ctx, now.Add(-24*time.Hour)); err != nil {
		log.Printf("⚠️ [DASHBOARD] 24h activity count failed: %v", err)
		complete = false
	} else {
		stats.RecordsLast24h = count
	}

	// partial snapshots are served but not cached, so the next caller retries
	if complete {
		s.cache.SetWithTTL(dashboardCacheKey, stats, s.ttl)
	}
	return stats
}
