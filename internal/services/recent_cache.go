package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"convlogger/internal/models"
)

const recentListKey = "recent:ids"

// RecentRecordCache keeps the newest records in Redis as a trimmed id list
// plus one JSON entry per record. Entries carry their own expiry, so a
// record can drop out of the cache before it leaves the id list; readers
// skip the gaps.
type RecentRecordCache struct {
	redis *RedisService
	limit int
	ttl   time.Duration
}

// NewRecentRecordCache creates a recent-records cache bounded to limit
// entries, each expiring after ttl.
func NewRecentRecordCache(redis *RedisService, limit int, ttl time.Duration) *RecentRecordCache {
	return &RecentRecordCache{
		redis: redis,
		limit: limit,
		ttl:   ttl,
	}
}

func recordKey(id string) string {
	return "record:" + id
}

// PushRecent stores the record and prepends its id to the recent list,
// trimming the list to the configured bound.
func (c *RecentRecordCache) PushRecent(ctx context.Context, record models.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := c.redis.Set(ctx, recordKey(record.ID), data, c.ttl); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}
	if err := c.redis.LPush(ctx, recentListKey, record.ID); err != nil {
		return fmt.Errorf("failed to push recent id: %w", err)
	}
	if err := c.redis.LTrim(ctx, recentListKey, 0, int64(c.limit-1)); err != nil {
		return fmt.Errorf("failed to trim recent list: %w", err)
	}
	if err := c.redis.Expire(ctx, recentListKey, c.ttl); err != nil {
		return fmt.Errorf("failed to refresh recent list expiry: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest cached records, newest first.
// Ids whose record entry already expired are skipped.
func (c *RecentRecordCache) Recent(ctx context.Context, limit int) ([]models.Record, error) {
	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}

	ids, err := c.redis.LRange(ctx, recentListKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read recent list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := c.redis.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent records: %w", err)
	}

	records := make([]models.Record, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // expired or evicted entry
		}
		var record models.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Flush drops the recent id list. Record entries age out on their own.
func (c *RecentRecordCache) Flush(ctx context.Context) error {
	return c.redis.Delete(ctx, recentListKey)
}
