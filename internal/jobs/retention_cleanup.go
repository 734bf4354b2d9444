package jobs

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// retentionBatchSize bounds one delete pass so the cleanup never holds a
// long-running multi-document operation against live traffic.
const retentionBatchSize = 500

// RetentionStore deletes records older than a cutoff, oldest first, at most
// limit per call.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int64) (int64, error)
}

// RecentFlusher drops the recent-records list so merge reads rebuild from
// the durable store.
type RecentFlusher interface {
	Flush(ctx context.Context) error
}

// CacheInvalidator drops memoized query and dashboard entries.
type CacheInvalidator interface {
	InvalidateCaches(ctx context.Context)
}

// RetentionJob deletes records older than the configured retention window in
// rate-limited batches. flusher and invalidator may be nil.
type RetentionJob struct {
	store       RetentionStore
	flusher     RecentFlusher
	invalidator CacheInvalidator
	days        int
	limiter     *rate.Limiter
}

// NewRetentionJob creates a retention cleanup job keeping the last days of
// records. days <= 0 disables the job.
func NewRetentionJob(store RetentionStore, flusher RecentFlusher, invalidator CacheInvalidator, days int) *RetentionJob {
	return &RetentionJob{
		store:       store,
		flusher:     flusher,
		invalidator: invalidator,
		days:        days,
		// at most 5 delete batches per second
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Run deletes expired records batch by batch until a short batch signals the
// backlog is gone, then invalidates caches that could still serve them.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		log.Println("[RETENTION] Retention cleanup disabled")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -j.days)
	log.Printf("[RETENTION] Starting cleanup of records older than %s", cutoff.Format(time.RFC3339))
	startTime := time.Now()

	var totalDeleted int64
	for {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}

		deleted, err := j.store.DeleteOlderThan(ctx, cutoff, retentionBatchSize)
		if err != nil {
			log.Printf("[RETENTION] Delete batch failed after %d deletions: %v", totalDeleted, err)
			return err
		}
		totalDeleted += deleted

		if deleted < retentionBatchSize {
			break
		}
	}

	if totalDeleted > 0 {
		if j.flusher != nil {
			if err := j.flusher.Flush(ctx); err != nil {
				log.Printf("⚠️ [RETENTION] Failed to flush recent cache: %v", err)
			}
		}
		if j.invalidator != nil {
			j.invalidator.InvalidateCaches(ctx)
		}
	}

	duration := time.Since(startTime)
	log.Printf("[RETENTION] Cleanup complete: deleted %d records in %v", totalDeleted, duration)
	return nil
}
