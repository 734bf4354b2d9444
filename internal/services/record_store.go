package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"convlogger/internal/database"
	"convlogger/internal/models"
)

// RecordFilter narrows record queries. Zero values mean "no constraint";
// time bounds are inclusive.
type RecordFilter struct {
	Limit   int
	Project string
	Session string
	Start   *time.Time
	End     *time.Time
}

// MongoRecordStore is the durable store for records and session metadata.
type MongoRecordStore struct {
	db       *database.MongoDB
	records  *mongo.Collection
	sessions *mongo.Collection
}

// NewMongoRecordStore creates a store over the messages and sessions collections.
func NewMongoRecordStore(db *database.MongoDB) *MongoRecordStore {
	return &MongoRecordStore{
		db:       db,
		records:  db.Collection(database.CollectionMessages),
		sessions: db.Collection(database.CollectionSessions),
	}
}

// Insert persists a record.
func (s *MongoRecordStore) Insert(ctx context.Context, record models.Record) error {
	if _, err := s.records.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Find returns records matching the filter, newest first.
func (s *MongoRecordStore) Find(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	query := bson.M{}
	if filter.Project != "" {
		query["projectName"] = filter.Project
	}
	if filter.Session != "" {
		query["sessionId"] = filter.Session
	}
	if filter.Start != nil || filter.End != nil {
		timeRange := bson.M{}
		if filter.Start != nil {
			timeRange["$gte"] = *filter.Start
		}
		if filter.End != nil {
			timeRange["$lte"] = *filter.End
		}
		query["timestamp"] = timeRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.records.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// TotalCount returns the number of persisted records.
func (s *MongoRecordStore) TotalCount(ctx context.Context) (int64, error) {
	count, err := s.records.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CountSince returns how many records arrived at or after the given instant.
func (s *MongoRecordStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	count, err := s.records.CountDocuments(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count recent records: %w", err)
	}
	return count, nil
}

// ProjectCounts returns the record count per project.
func (s *MongoRecordStore) ProjectCounts(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$projectName", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.records.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate project counts: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode project counts: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, result := range results {
		project, _ := result["_id"].(string)
		if project == "" {
			continue
		}
		counts[project] = extractInt64(result, "count")
	}
	return counts, nil
}

// TokenCostTotals sums token usage and estimated cost across all records.
func (s *MongoRecordStore) TokenCostTotals(ctx context.Context) (models.TokenUsage, float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"inputTokens":   bson.M{"$sum": "$metadata.tokens.inputTokens"},
			"outputTokens":  bson.M{"$sum": "$metadata.tokens.outputTokens"},
			"cacheCreation": bson.M{"$sum": "$metadata.tokens.cacheCreationInputTokens"},
			"cacheRead":     bson.M{"$sum": "$metadata.tokens.cacheReadInputTokens"},
			"costUsd":       bson.M{"$sum": "$metadata.costUsd"},
		}}},
	}
	cursor, err := s.records.Aggregate(ctx, pipeline)
	if err != nil {
		return models.TokenUsage{}, 0, fmt.Errorf("failed to aggregate token totals: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return models.TokenUsage{}, 0, fmt.Errorf("failed to decode token totals: %w", err)
	}
	if len(results) == 0 {
		return models.TokenUsage{}, 0, nil
	}

	usage := models.TokenUsage{
		Input:         extractInt64(results[0], "inputTokens"),
		Output:        extractInt64(results[0], "outputTokens"),
		CacheCreation: extractInt64(results[0], "cacheCreation"),
		CacheRead:     extractInt64(results[0], "cacheRead"),
	}
	return usage, extractFloat64(results[0], "costUsd"), nil
}

// SessionIDs returns the distinct session ids, optionally scoped to a project.
func (s *MongoRecordStore) SessionIDs(ctx context.Context, project string) ([]string, error) {
	query := bson.M{}
	if project != "" {
		query["projectName"] = project
	}
	values, err := s.records.Distinct(ctx, "sessionId", query)
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, value := range values {
		if id, ok := value.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// UpsertSessionMeta stores or replaces a session's description metadata.
func (s *MongoRecordStore) UpsertSessionMeta(ctx context.Context, meta models.SessionMeta) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": meta.SessionID}, meta, opts); err != nil {
		return fmt.Errorf("failed to upsert session meta: %w", err)
	}
	return nil
}

// GetSessionMeta returns a session's metadata, or nil when none is stored.
func (s *MongoRecordStore) GetSessionMeta(ctx context.Context, sessionID string) (*models.SessionMeta, error) {
	var meta models.SessionMeta
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session meta: %w", err)
	}
	return &meta, nil
}

// DeleteOlderThan removes up to limit records older than the cutoff and
// returns how many went away. Used by the retention job in batches.
func (s *MongoRecordStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(limit)
	cursor, err := s.records.Find(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("failed to decode expired record ids: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	result, err := s.records.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}
	return result.DeletedCount, nil
}

// Ping verifies the underlying connection.
func (s *MongoRecordStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// extractInt64 safely extracts an int64 value from a bson.M result
func extractInt64(result bson.M, key string) int64 {
	if count, ok := result[key].(int32); ok {
		return int64(count)
	} else if count, ok := result[key].(int64); ok {
		return count
	}
	return 0
}

// extractFloat64 safely extracts a float64 value from a bson.M result
func extractFloat64(result bson.M, key string) float64 {
	switch value := result[key].(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int32:
		return float64(value)
	case int64:
		return float64(value)
	}
	return 0
}
