package jobs

import (
	"context"
	"log"

	"convlogger/internal/services"
)

// SnapshotRefreshJob keeps the dashboard snapshot warm so interactive loads
// rarely pay for the aggregation scan.
type SnapshotRefreshJob struct {
	dashboard *services.DashboardService
}

// NewSnapshotRefreshJob creates the dashboard warmer.
func NewSnapshotRefreshJob(dashboard *services.DashboardService) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{dashboard: dashboard}
}

// Run recomputes the snapshot if the cached one has expired.
func (j *SnapshotRefreshJob) Run(ctx context.Context) error {
	stats := j.dashboard.Snapshot(ctx)
	log.Printf("📊 [SNAPSHOT] Dashboard snapshot warm (%d records)", stats.TotalRecords)
	return nil
}
