package services

import (
	"math"
	"testing"

	"convlogger/internal/models"
)

func TestTokenPricingEstimate(t *testing.T) {
	usage := models.TokenUsage{
		Input:         1000,
		Output:        500,
		CacheCreation: 200,
		CacheRead:     100,
	}

	cost := DefaultTokenPricing.Estimate(usage)
	expected := 0.01113
	if math.Abs(cost-expected) > 0.000001 {
		t.Errorf("expected cost %.6f, got %.6f", expected, cost)
	}
}

func TestTokenPricingEstimateZero(t *testing.T) {
	if cost := DefaultTokenPricing.Estimate(models.TokenUsage{}); cost != 0 {
		t.Errorf("expected zero cost for zero usage, got %f", cost)
	}
}
