package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"convlogger/internal/models"
)

// ErrValidation marks caller mistakes. Handlers map it to a 400; every
// other failure degrades internally and never reaches the caller as an
// error.
var ErrValidation = errors.New("validation failed")

const (
	// DefaultQueryLimit caps queries that do not ask for a limit.
	DefaultQueryLimit = 50

	// sessionExportLimit bounds a full-session read for exports.
	sessionExportLimit = 10000

	dashboardCacheKey = "stats:dashboard"
	queryCachePrefix  = "q:"
)

// RecordStore is the durable half of the cascade, the single source of truth.
type RecordStore interface {
	Insert(ctx context.Context, record models.Record) error
	Find(ctx context.Context, filter RecordFilter) ([]models.Record, error)
}

// RecentCache is the fast half: a bounded, expiring recent-records buffer.
type RecentCache interface {
	PushRecent(ctx context.Context, record models.Record) error
	Recent(ctx context.Context, limit int) ([]models.Record, error)
}

// InvalidationBroadcaster fans cache invalidations out to sibling instances.
type InvalidationBroadcaster interface {
	PublishInvalidation(ctx context.Context, prefixes, keys []string)
}

// IngestInput is the payload accepted from logging clients.
type IngestInput struct {
	SessionID   string                 `json:"session_id"`
	ProjectName string                 `json:"project_name"`
	MessageType string                 `json:"message_type"`
	Content     string                 `json:"content"`
	HookEvent   string                 `json:"hook_event"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// RecordService implements the write/read cascade over the durable store
// and the recent-records cache.
type RecordService struct {
	store       RecordStore
	recent      RecentCache             // nil when Redis is not configured
	cache       *TTLCache               // query/aggregate memoization
	broadcaster InvalidationBroadcaster // nil when running single-instance
	pricing     TokenPricing
	queryTTL    time.Duration
	metrics     *Metrics
}

// NewRecordService wires the cascade. recent and broadcaster may be nil;
// the cascade then runs on the durable store alone.
func NewRecordService(store RecordStore, recent RecentCache, cache *TTLCache, broadcaster InvalidationBroadcaster, queryTTL time.Duration) *RecordService {
	return &RecordService{
		store:       store,
		recent:      recent,
		cache:       cache,
		broadcaster: broadcaster,
		pricing:     DefaultTokenPricing,
		queryTTL:    queryTTL,
		metrics:     GetMetrics(),
	}
}

// Ingest validates the input, assigns id and timestamp, then runs the write
// cascade: durable insert first, best-effort cache push second, derived-entry
// invalidation strictly after the durable attempt. Tier failures are
// swallowed and logged; the caller always gets the stored record back.
func (s *RecordService) Ingest(ctx context.Context, input IngestInput) (models.Record, error) {
	if input.SessionID == "" {
		return models.Record{}, fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if input.ProjectName == "" {
		return models.Record{}, fmt.Errorf("%w: project_name is required", ErrValidation)
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = models.MessageTypeUser
	}
	switch messageType {
	case models.MessageTypeUser, models.MessageTypeAssistant, models.MessageTypeSystem,
		models.MessageTypeTool, models.MessageTypeTokenMetric:
	default:
		return models.Record{}, fmt.Errorf("%w: unknown message_type %q", ErrValidation, input.MessageType)
	}

	record := models.Record{
		ID:          uuid.NewString(),
		SessionID:   input.SessionID,
		ProjectName: input.ProjectName,
		MessageType: messageType,
		Content:     input.Content,
		HookEvent:   input.HookEvent,
		Timestamp:   time.Now().UTC(),
		Metadata:    models.MetadataFromMap(input.Metadata),
	}
	if record.Metadata.CostUSD == 0 && !record.Metadata.Tokens.IsZero() {
		record.Metadata.CostUSD = s.pricing.Estimate(record.Metadata.Tokens)
	}
	s.metrics.RecordIngest()

	durableErr := s.store.Insert(ctx, record)
	if durableErr != nil {
		log.Printf("❌ [INGEST] Durable insert failed for record %s: %v", record.ID, durableErr)
		s.metrics.RecordTierError("mongo")
	}

	cachePushed := false
	if s.recent != nil {
		if err := s.recent.PushRecent(ctx, record); err != nil {
			log.Printf("⚠️ [INGEST] Recent cache push failed for record %s: %v", record.ID, err)
			s.metrics.RecordTierError("redis")
		} else {
			cachePushed = true
		}
	}

	// Derived entries go stale the moment a record lands anywhere, so
	// invalidate after the durable attempt regardless of its outcome.
	s.invalidateDerived(ctx)

	if durableErr != nil && !cachePushed {
		s.metrics.RecordLost()
		log.Printf("🚨 [INGEST] Record %s for session %s not stored in any tier", record.ID, record.SessionID)
	}
	return record, nil
}

// Query runs the read cascade: memoized result if fresh, otherwise durable
// store merged with the recent cache, deduplicated, newest first, capped to
// the limit. Tier failures degrade to whatever the other tier returned; both
// tiers down means an empty result, never an error.
func (s *RecordService) Query(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	start := time.Now()
	defer func() {
		s.metrics.ObserveQueryLatency(time.Since(start).Seconds())
	}()

	key := queryCacheKey(filter)
	if cached, found := s.cache.Get(key); found {
		if records, ok := cached.([]models.Record); ok {
			s.metrics.RecordCacheLookup("query", true)
			return records, nil
		}
	}
	s.metrics.RecordCacheLookup("query", false)

	stored, err := s.store.Find(ctx, filter)
	if err != nil {
		log.Printf("⚠️ [QUERY] Durable store query failed: %v", err)
		s.metrics.RecordTierError("mongo")
	}

	var recent []models.Record
	if s.recent != nil {
		recent, err = s.recent.Recent(ctx, filter.Limit)
		if err != nil {
			log.Printf("⚠️ [QUERY] Recent cache read failed: %v", err)
			s.metrics.RecordTierError("redis")
		}
	}

	merged := mergeRecords(stored, recent, filter)
	if len(merged) > 0 {
		s.cache.SetWithTTL(key, merged, s.queryTTL)
	}
	return merged, nil
}

// SessionRecords returns a session's records in chronological order, the
// shape exports want.
func (s *RecordService) SessionRecords(ctx context.Context, sessionID string) ([]models.Record, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}

	records, err := s.Query(ctx, RecordFilter{Session: sessionID, Limit: sessionExportLimit})
	if err != nil {
		return nil, err
	}

	// copy before reordering; the query result may be shared with the cache
	chronological := make([]models.Record, len(records))
	copy(chronological, records)
	sort.SliceStable(chronological, func(i, j int) bool {
		return chronological[i].Timestamp.Before(chronological[j].Timestamp)
	})
	return chronological, nil
}

// InvalidateCaches drops all memoized query and dashboard entries. Callers
// that change the store outside the ingest path (retention cleanup) use this
// to keep reads from serving deleted records.
func (s *RecordService) InvalidateCaches(ctx context.Context) {
	s.invalidateDerived(ctx)
}

// invalidateDerived drops every cache entry the new record could make stale,
// locally and on sibling instances.
func (s *RecordService) invalidateDerived(ctx context.Context) {
	s.cache.DeletePrefix(queryCachePrefix)
	s.cache.Delete(dashboardCacheKey)
	if s.broadcaster != nil {
		s.broadcaster.PublishInvalidation(ctx, []string{queryCachePrefix}, []string{dashboardCacheKey})
	}
}

// queryCacheKey derives a deterministic cache key from the filter.
func queryCacheKey(filter RecordFilter) string {
	start, end := "", ""
	if filter.Start != nil {
		start = filter.Start.UTC().Format(time.RFC3339Nano)
	}
	if filter.End != nil {
		end = filter.End.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%sp=%s|s=%s|a=%s|b=%s|n=%d",
		queryCachePrefix, filter.Project, filter.Session, start, end, filter.Limit)
}

// mergeRecords combines both tiers, dropping cache entries the filter
// excludes and duplicate ids, then orders newest first and caps the result.
func mergeRecords(stored, recent []models.Record, filter RecordFilter) []models.Record {
	seen := make(map[string]bool, len(stored)+len(recent))
	merged := make([]models.Record, 0, len(stored)+len(recent))

	for _, rec := range stored {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		merged = append(merged, rec)
	}
	for _, rec := range recent {
		if rec.ID == "" || seen[rec.ID] || !matchesFilter(rec, filter) {
			continue
		}
		seen[rec.ID] = true
		merged = append(merged, rec)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if filter.Limit > 0 && len(merged) > filter.Limit {
		merged = merged[:filter.Limit]
	}
	return merged
}

// matchesFilter applies the query filter to a cache-sourced record.
// Time bounds are inclusive.
func matchesFilter(rec models.Record, filter RecordFilter) bool {
	if filter.Project != "" && rec.ProjectName != filter.Project {
		return false
	}
	if filter.Session != "" && rec.SessionID != filter.Session {
		return false
	}
	if filter.Start != nil && rec.Timestamp.Before(*filter.Start) {
		return false
	}
	if filter.End != nil && rec.Timestamp.After(*filter.End) {
		return false
	}
	return true
}
