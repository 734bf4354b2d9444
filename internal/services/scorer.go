package services

import (
	"math"
	"sort"
	"time"

	"convlogger/internal/models"
)

// ScoreConfig tunes freshness decay, boost factors and rank weights.
type ScoreConfig struct {
	// HalfLifeHours controls the exponential decay of freshness.
	HalfLifeHours float64
	// FreshnessFloor is the minimum freshness an old record keeps.
	FreshnessFloor float64
	// RelevanceWeight and FreshnessWeight combine into the rank score.
	RelevanceWeight float64
	FreshnessWeight float64
	// Boost multipliers applied per content signal, clamped to 100.
	UnresolvedBoost float64
	ErrorBoost      float64
	QuestionBoost   float64
	CodeBoost       float64
	// ResolutionWindow is how many closing records decide "resolved".
	ResolutionWindow int
}

// DefaultScoreConfig returns the standard tuning.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		HalfLifeHours:    24,
		FreshnessFloor:   10,
		RelevanceWeight:  0.7,
		FreshnessWeight:  0.3,
		UnresolvedBoost:  1.5,
		ErrorBoost:       1.4,
		QuestionBoost:    1.2,
		CodeBoost:        1.1,
		ResolutionWindow: 3,
	}
}

// RankedRecord is a record with its scoring breakdown.
type RankedRecord struct {
	Record    models.Record `json:"record"`
	Relevance float64       `json:"relevance"`
	Freshness float64       `json:"freshness"`
	Score     float64       `json:"score"`
}

// Scorer ranks records by combining text relevance with time-decayed
// freshness, and decides whether a conversation reads as resolved.
type Scorer struct {
	config     ScoreConfig
	classifier ContentClassifier
}

// NewScorer creates a scorer with the given tuning and classifier.
// A nil classifier falls back to the default keyword lists.
func NewScorer(cfg ScoreConfig, classifier ContentClassifier) *Scorer {
	if classifier == nil {
		classifier = NewKeywordClassifier(nil)
	}
	return &Scorer{config: cfg, classifier: classifier}
}

// Freshness decays from 100 toward the floor as the record ages.
// Future timestamps clamp to 100.
func (s *Scorer) Freshness(timestamp, now time.Time) float64 {
	hours := now.Sub(timestamp).Hours()
	if hours < 0 {
		hours = 0
	}
	fresh := 100 * math.Exp(-hours/s.config.HalfLifeHours)
	if fresh < s.config.FreshnessFloor {
		return s.config.FreshnessFloor
	}
	if fresh > 100 {
		return 100
	}
	return fresh
}

// Boosted applies the multiplicative boosts for each active signal,
// clamped to 100.
func (s *Scorer) Boosted(freshness float64, signals Signals) float64 {
	if signals.IsUnresolved {
		freshness *= s.config.UnresolvedBoost
	}
	if signals.HasErrors {
		freshness *= s.config.ErrorBoost
	}
	if signals.IsUserQuestion {
		freshness *= s.config.QuestionBoost
	}
	if signals.HasCodeSamples {
		freshness *= s.config.CodeBoost
	}
	if freshness > 100 {
		return 100
	}
	return freshness
}

// Rank scores every record and returns them ordered best-first. The sort
// is stable; equal scores fall back to newest-first so the same inputs
// and clock always produce the same ordering.
func (s *Scorer) Rank(records []models.Record, relevance func(models.Record) float64, now time.Time) []RankedRecord {
	ranked := make([]RankedRecord, 0, len(records))
	for _, rec := range records {
		rel := 0.0
		if relevance != nil {
			rel = relevance(rec)
		}
		signals := s.classifier.Classify(rec.Content)
		fresh := s.Boosted(s.Freshness(rec.Timestamp, now), signals)
		score := s.config.RelevanceWeight*rel + s.config.FreshnessWeight*(fresh/100)
		ranked = append(ranked, RankedRecord{
			Record:    rec,
			Relevance: rel,
			Freshness: fresh,
			Score:     score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Record.Timestamp.After(ranked[j].Record.Timestamp)
	})
	return ranked
}

// IsResolved scans the closing window of a conversation and reports
// whether its phrase score crosses the resolution threshold.
func (s *Scorer) IsResolved(records []models.Record) bool {
	if len(records) == 0 {
		return false
	}

	sorted := make([]models.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	window := s.config.ResolutionWindow
	if window <= 0 {
		window = DefaultScoreConfig().ResolutionWindow
	}
	if len(sorted) > window {
		sorted = sorted[len(sorted)-window:]
	}

	texts := make([]string, 0, len(sorted))
	for _, rec := range sorted {
		texts = append(texts, rec.Content)
	}
	return s.classifier.ResolutionScore(texts) > 1
}
