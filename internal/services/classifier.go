package services

import (
	"strings"
	"sync/atomic"

	"convlogger/internal/config"
)

// Signals are the boolean boost factors derived from a record's content.
type Signals struct {
	IsUnresolved   bool `json:"is_unresolved"`
	HasErrors      bool `json:"has_errors"`
	IsUserQuestion bool `json:"is_user_question"`
	HasCodeSamples bool `json:"has_code_samples"`
}

// ContentClassifier derives lexical signals from conversation text. The
// heuristics are intentionally keyword-based, not semantic.
type ContentClassifier interface {
	// Classify derives boost signals from a single record's content.
	Classify(text string) Signals
	// ResolutionScore accumulates +1 per resolution phrase and -0.5 per
	// open-issue phrase across the given texts.
	ResolutionScore(texts []string) float64
	// Categorize assigns a session category from the joined conversation
	// text, falling back to "general".
	Categorize(text string) string
}

// CategoryGeneral is the fallback when no category rule matches.
const CategoryGeneral = "general"

// KeywordClassifier matches configurable keyword lists against content.
// Reload swaps the lists atomically so the config watcher can hot-reload
// them without blocking readers.
type KeywordClassifier struct {
	keywords atomic.Pointer[config.Keywords]
}

// NewKeywordClassifier creates a classifier over the given keyword lists.
// A nil argument falls back to the built-in defaults.
func NewKeywordClassifier(kw *config.Keywords) *KeywordClassifier {
	c := &KeywordClassifier{}
	if kw == nil {
		kw = config.DefaultKeywords()
	}
	c.keywords.Store(kw)
	return c
}

// Reload replaces the keyword lists. Safe to call concurrently with reads.
func (c *KeywordClassifier) Reload(kw *config.Keywords) {
	if kw == nil {
		return
	}
	c.keywords.Store(kw)
}

// Classify derives the boost signals for one record's content.
func (c *KeywordClassifier) Classify(text string) Signals {
	kw := c.keywords.Load()
	lower := strings.ToLower(text)

	return Signals{
		IsUnresolved:   phraseScore(lower, kw) < 0,
		HasErrors:      containsAny(lower, kw.ErrorKeywords),
		IsUserQuestion: strings.Contains(text, "?") || strings.Contains(text, "¿") || containsAny(lower, kw.QuestionWords),
		// code markers are matched case-sensitively; SELECT and select are
		// different things
		HasCodeSamples: containsAny(text, kw.CodeMarkers),
	}
}

// ResolutionScore accumulates phrase scores over the closing texts of a
// conversation. A score above 1 means the conversation reads as resolved.
func (c *KeywordClassifier) ResolutionScore(texts []string) float64 {
	kw := c.keywords.Load()
	score := 0.0
	for _, text := range texts {
		score += phraseScore(strings.ToLower(text), kw)
	}
	return score
}

// Categorize returns the first category whose keyword list matches the text.
func (c *KeywordClassifier) Categorize(text string) string {
	kw := c.keywords.Load()
	lower := strings.ToLower(text)

	for _, rule := range kw.Categories {
		if containsAny(lower, rule.Keywords) {
			return rule.Name
		}
	}
	return CategoryGeneral
}

// phraseScore counts +1 per resolution phrase present and -0.5 per
// open-issue phrase present. Presence, not occurrence count.
func phraseScore(lower string, kw *config.Keywords) float64 {
	score := 0.0
	for _, phrase := range kw.ResolutionPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			score++
		}
	}
	for _, phrase := range kw.OpenIssuePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			score -= 0.5
		}
	}
	return score
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
