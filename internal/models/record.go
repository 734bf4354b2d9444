package models

import (
	"time"
)

// Message types for conversation records
const (
	MessageTypeUser        = "user"
	MessageTypeAssistant   = "assistant"
	MessageTypeSystem      = "system"
	MessageTypeTool        = "tool"
	MessageTypeTokenMetric = "token_metric"
)

// Hook event names emitted by logging clients
const (
	EventUserPromptSubmit = "UserPromptSubmit"
	EventStop             = "Stop"
	EventPostToolUse      = "PostToolUse"
	EventSessionStart     = "SessionStart"
)

// TokenUsage holds per-type token counts reported with a record.
type TokenUsage struct {
	Input         int64 `bson:"inputTokens" json:"input_tokens"`
	Output        int64 `bson:"outputTokens" json:"output_tokens"`
	CacheCreation int64 `bson:"cacheCreationInputTokens" json:"cache_creation_input_tokens"`
	CacheRead     int64 `bson:"cacheReadInputTokens" json:"cache_read_input_tokens"`
}

// IsZero reports whether no token counts are present.
func (u TokenUsage) IsZero() bool {
	return u.Input == 0 && u.Output == 0 && u.CacheCreation == 0 && u.CacheRead == 0
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(o TokenUsage) {
	u.Input += o.Input
	u.Output += o.Output
	u.CacheCreation += o.CacheCreation
	u.CacheRead += o.CacheRead
}

// RecordMetadata carries the well-known optional fields of a record plus an
// open extension map for anything else clients send.
type RecordMetadata struct {
	Model      string                 `bson:"model,omitempty" json:"model,omitempty"`
	CostUSD    float64                `bson:"costUsd,omitempty" json:"cost_usd,omitempty"`
	DurationMS int64                  `bson:"durationMs,omitempty" json:"duration_ms,omitempty"`
	Tokens     TokenUsage             `bson:"tokens,omitempty" json:"tokens,omitempty"`
	Extra      map[string]interface{} `bson:"extra,omitempty" json:"extra,omitempty"`
}

// Record is one logged conversation turn or token-usage metric.
// Records are append-only; only session-level metadata (SessionMeta) may be
// written after the fact.
type Record struct {
	ID          string         `bson:"_id" json:"id"`
	SessionID   string         `bson:"sessionId" json:"session_id"`
	ProjectName string         `bson:"projectName" json:"project_name"`
	MessageType string         `bson:"messageType" json:"message_type"`
	Content     string         `bson:"content" json:"content"`
	HookEvent   string         `bson:"hookEvent,omitempty" json:"hook_event,omitempty"`
	Timestamp   time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata    RecordMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// SessionMeta is the per-session description/category attached by the
// analyzer. Keyed by session id, not record id.
type SessionMeta struct {
	SessionID   string    `bson:"_id" json:"session_id"`
	ProjectName string    `bson:"projectName,omitempty" json:"project_name,omitempty"`
	Description string    `bson:"description" json:"description"`
	Category    string    `bson:"category" json:"category"`
	Resolved    bool      `bson:"resolved" json:"resolved"`
	RecordCount int       `bson:"recordCount" json:"record_count"`
	AnalyzedAt  time.Time `bson:"analyzedAt" json:"analyzed_at"`
}

// DashboardStats is the aggregate snapshot served to dashboards.
type DashboardStats struct {
	TotalRecords   int64            `json:"total_records"`
	ProjectCounts  map[string]int64 `json:"project_counts"`
	TokenTotals    TokenUsage       `json:"token_totals"`
	TotalCostUSD   float64          `json:"total_cost_usd"`
	RecordsLast24h int64            `json:"records_last_24h"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// MetadataFromMap lifts the well-known fields out of a raw metadata map,
// leaving everything unrecognized in Extra. JSON numbers arrive as float64.
func MetadataFromMap(raw map[string]interface{}) RecordMetadata {
	var md RecordMetadata
	if len(raw) == 0 {
		return md
	}

	extra := make(map[string]interface{})
	for key, value := range raw {
		switch key {
		case "model":
			if s, ok := value.(string); ok {
				md.Model = s
				continue
			}
		case "cost_usd":
			if f, ok := toFloat64(value); ok {
				md.CostUSD = f
				continue
			}
		case "duration_ms":
			if n, ok := toInt64(value); ok {
				md.DurationMS = n
				continue
			}
		case "usage", "tokens":
			if m, ok := value.(map[string]interface{}); ok {
				md.Tokens = tokenUsageFromMap(m)
				continue
			}
		}
		extra[key] = value
	}

	if len(extra) > 0 {
		md.Extra = extra
	}
	return md
}

func tokenUsageFromMap(raw map[string]interface{}) TokenUsage {
	var u TokenUsage
	if n, ok := toInt64(raw["input_tokens"]); ok {
		u.Input = n
	}
	if n, ok := toInt64(raw["output_tokens"]); ok {
		u.Output = n
	}
	if n, ok := toInt64(raw["cache_creation_input_tokens"]); ok {
		u.CacheCreation = n
	}
	if n, ok := toInt64(raw["cache_read_input_tokens"]); ok {
		u.CacheRead = n
	}
	return u
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
