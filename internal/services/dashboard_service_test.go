package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"convlogger/internal/models"
)

type fakeStatsSource struct {
	mu       sync.Mutex
	total    int64
	last24h  int64
	projects map[string]int64
	usage    models.TokenUsage
	cost     float64
	err      error
	calls    int
}

func (f *fakeStatsSource) TotalCount(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

func (f *fakeStatsSource) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.last24h, nil
}

func (f *fakeStatsSource) ProjectCounts(ctx context.Context) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func (f *fakeStatsSource) TokenCostTotals(ctx context.Context) (models.TokenUsage, float64, error) {
	if f.err != nil {
		return models.TokenUsage{}, 0, f.err
	}
	return f.usage, f.cost, nil
}

func TestSnapshotAggregates(t *testing.T) {
	source := &fakeStatsSource{
		total:    120,
		last24h:  15,
		projects: map[string]int64{"demo": 100, "otro": 20},
		usage:    models.TokenUsage{Input: 1000, Output: 500},
		cost:     0.0105,
	}
	svc := NewDashboardService(source, NewTTLCache(time.Minute, time.Minute), time.Minute)

	stats := svc.Snapshot(context.Background())

	if stats.TotalRecords != 120 {
		t.Errorf("expected 120 total, got %d", stats.TotalRecords)
	}
	if stats.RecordsLast24h != 15 {
		t.Errorf("expected 15 in the last day, got %d", stats.RecordsLast24h)
	}
	if stats.ProjectCounts["demo"] != 100 || stats.ProjectCounts["otro"] != 20 {
		t.Errorf("unexpected project counts: %+v", stats.ProjectCounts)
	}
	if stats.TokenTotals.Input != 1000 || stats.TokenTotals.Output != 500 {
		t.Errorf("unexpected token totals: %+v", stats.TokenTotals)
	}
	if stats.TotalCostUSD != 0.0105 {
		t.Errorf("expected cost 0.0105, got %f", stats.TotalCostUSD)
	}
	if stats.GeneratedAt.IsZero() {
		t.Error("expected a generation timestamp")
	}
}

func TestSnapshotCachesResult(t *testing.T) {
	source := &fakeStatsSource{total: 10}
	svc := NewDashboardService(source, NewTTLCache(time.Minute, time.Minute), time.Minute)

	first := svc.Snapshot(context.Background())

	source.mu.Lock()
	source.total = 99
	source.mu.Unlock()

	second := svc.Snapshot(context.Background())
	if second.TotalRecords != first.TotalRecords {
		t.Errorf("expected the cached snapshot, got total %d", second.TotalRecords)
	}

	source.mu.Lock()
	calls := source.calls
	source.mu.Unlock()
	if calls != 1 {
		t.Errorf("expected one store scan, got %d", calls)
	}
}

func TestSnapshotStoreDownReturnsZeroed(t *testing.T) {
	source := &fakeStatsSource{err: errors.New("mongo down")}
	svc := NewDashboardService(source, NewTTLCache(time.Minute, time.Minute), time.Minute)

	stats := svc.Snapshot(context.Background())

	if stats.TotalRecords != 0 || stats.RecordsLast24h != 0 || stats.TotalCostUSD != 0 {
		t.Errorf("expected zeroed snapshot, got %+v", stats)
	}
	if stats.ProjectCounts == nil {
		t.Error("expected an empty map, not nil")
	}
	if stats.GeneratedAt.IsZero() {
		t.Error("expected a generation timestamp even when degraded")
	}
}

func TestSnapshotDoesNotCacheDegraded(t *testing.T) {
	source := &fakeStatsSource{err: errors.New("mongo down")}
	svc := NewDashboardService(source, NewTTLCache(time.Minute, time.Minute), time.Minute)

	svc.Snapshot(context.Background())

	// store recovers; the degraded snapshot must not stick around
	source.mu.Lock()
	source.err = nil
	source.total = 42
	source.mu.Unlock()

	stats := svc.Snapshot(context.Background())
	if stats.TotalRecords != 42 {
		t.Errorf("expected fresh snapshot after recovery, got %d", stats.TotalRecords)
	}
}

func TestSnapshotServesCachedWhileStoreDown(t *testing.T) {
	source := &fakeStatsSource{total: 10}
	svc := NewDashboardService(source, NewTTLCache(time.Minute, time.Minute), time.Minute)

	svc.Snapshot(context.Background())

	// store dies; the cached snapshot still answers
	source.mu.Lock()
	source.err = errors.New("mongo down")
	source.mu.Unlock()

	stats := svc.Snapshot(context.Background())
	if stats.TotalRecords != 10 {
		t.Errorf("expected the last good snapshot, got %d", stats.TotalRecords)
	}
}
