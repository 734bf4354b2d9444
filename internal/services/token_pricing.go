package services

import "convlogger/internal/models"

// TokenPricing holds per-token USD rates for each usage bucket.
type TokenPricing struct {
	InputPerToken         float64
	OutputPerToken        float64
	CacheCreationPerToken float64
	CacheReadPerToken     float64
}

// DefaultTokenPricing matches the rates recorded by the ingestion hooks.
var DefaultTokenPricing = TokenPricing{
	InputPerToken:         0.000003,
	OutputPerToken:        0.000015,
	CacheCreationPerToken: 0.000003,
	CacheReadPerToken:     0.0000003,
}

// Estimate returns the USD cost of the given usage under these rates.
func (p TokenPricing) Estimate(usage models.TokenUsage) float64 {
	return float64(usage.Input)*p.InputPerToken +
		float64(usage.Output)*p.OutputPerToken +
		float64(usage.CacheCreation)*p.CacheCreationPerToken +
		float64(usage.CacheRead)*p.CacheReadPerToken
}
