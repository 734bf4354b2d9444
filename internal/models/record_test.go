package models

import (
	"testing"
)

func TestMetadataFromMap(t *testing.T) {
	raw := map[string]interface{}{
		"model":       "claude-sonnet-4",
		"cost_usd":    0.0141,
		"duration_ms": float64(2500), // JSON numbers decode as float64
		"usage": map[string]interface{}{
			"input_tokens":                float64(1000),
			"output_tokens":               float64(500),
			"cache_creation_input_tokens": float64(200),
			"cache_read_input_tokens":     float64(100),
		},
		"source":    "stop_hook_assistant",
		"tool_name": "Bash",
	}

	md := MetadataFromMap(raw)

	if md.Model != "claude-sonnet-4" {
		t.Errorf("Expected model 'claude-sonnet-4', got %q", md.Model)
	}
	if md.CostUSD != 0.0141 {
		t.Errorf("Expected cost 0.0141, got %v", md.CostUSD)
	}
	if md.DurationMS != 2500 {
		t.Errorf("Expected duration 2500ms, got %d", md.DurationMS)
	}
	if md.Tokens.Input != 1000 || md.Tokens.Output != 500 {
		t.Errorf("Unexpected token counts: %+v", md.Tokens)
	}
	if md.Tokens.CacheCreation != 200 || md.Tokens.CacheRead != 100 {
		t.Errorf("Unexpected cache token counts: %+v", md.Tokens)
	}

	// Unknown keys stay in the open extension map
	if md.Extra["source"] != "stop_hook_assistant" {
		t.Errorf("Expected extra 'source' preserved, got %v", md.Extra)
	}
	if md.Extra["tool_name"] != "Bash" {
		t.Errorf("Expected extra 'tool_name' preserved, got %v", md.Extra)
	}
	// Well-known keys must not leak into Extra
	if _, ok := md.Extra["model"]; ok {
		t.Error("'model' should not appear in Extra")
	}
}

func TestMetadataFromMapEmpty(t *testing.T) {
	md := MetadataFromMap(nil)
	if md.Model != "" || md.Extra != nil || !md.Tokens.IsZero() {
		t.Errorf("Expected zero metadata, got %+v", md)
	}
}

func TestTokenUsageAdd(t *testing.T) {
	total := TokenUsage{}
	total.Add(TokenUsage{Input: 10, Output: 5})
	total.Add(TokenUsage{Input: 1, CacheRead: 7, CacheCreation: 2})

	if total.Input != 11 || total.Output != 5 || total.CacheRead != 7 || total.CacheCreation != 2 {
		t.Errorf("Unexpected totals: %+v", total)
	}
	if total.IsZero() {
		t.Error("Non-empty usage reported as zero")
	}
	if !(TokenUsage{}).IsZero() {
		t.Error("Empty usage not reported as zero")
	}
}
