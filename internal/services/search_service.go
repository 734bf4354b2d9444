package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"convlogger/internal/models"
)

const (
	// DefaultSearchLimit caps searches that do not ask for a limit.
	DefaultSearchLimit = 20

	// candidateMultiplier widens the read window so ranking has more than
	// one page of candidates to choose from.
	candidateMultiplier = 10

	// excerptRadius is how many runes of context surround the first match.
	excerptRadius = 60
)

// RecordQuerier is the read side search draws its candidates from.
type RecordQuerier interface {
	Query(ctx context.Context, filter RecordFilter) ([]models.Record, error)
}

// SearchResult is one ranked hit with a highlighted excerpt.
type SearchResult struct {
	Record    models.Record `json:"record"`
	Relevance float64       `json:"relevance"`
	Freshness float64       `json:"freshness"`
	Score     float64       `json:"score"`
	Excerpt   string        `json:"excerpt"`
}

// SearchService ranks records against a text query, combining term
// relevance with freshness scoring.
type SearchService struct {
	records RecordQuerier
	scorer  *Scorer
}

// NewSearchService creates a search service over the given read side.
func NewSearchService(records RecordQuerier, scorer *Scorer) *SearchService {
	return &SearchService{records: records, scorer: scorer}
}

// Search returns the best-ranked records matching the query, optionally
// scoped to a project. An empty query is a validation error; an unreachable
// store degrades to an empty result.
func (s *SearchService) Search(ctx context.Context, query, project string, limit int) ([]SearchResult, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: search query is required", ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	phrase := strings.Join(terms, " ")

	candidates, err := s.records.Query(ctx, RecordFilter{
		Project: project,
		Limit:   limit * candidateMultiplier,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]models.Record, 0, len(candidates))
	relByID := make(map[string]float64, len(candidates))
	for _, rec := range candidates {
		rel := termRelevance(rec.Content, terms, phrase)
		if rel == 0 {
			continue
		}
		matches = append(matches, rec)
		relByID[rec.ID] = rel
	}

	ranked := s.scorer.Rank(matches, func(rec models.Record) float64 {
		return relByID[rec.ID]
	}, time.Now().UTC())
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]SearchResult, len(ranked))
	for i, hit := range ranked {
		results[i] = SearchResult{
			Record:    hit.Record,
			Relevance: hit.Relevance,
			Freshness: hit.Freshness,
			Score:     hit.Score,
			Excerpt:   buildExcerpt(hit.Record.Content, terms),
		}
	}
	return results, nil
}

// tokenizeQuery lowercases and splits the query, dropping duplicate terms.
func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if seen[field] {
			continue
		}
		seen[field] = true
		terms = append(terms, field)
	}
	return terms
}

// termRelevance scores the fraction of query terms present in the content.
// Multi-term queries reserve a quarter of the scale for an exact phrase
// match, so "redis timeout" verbatim outranks the words scattered apart.
func termRelevance(content string, terms []string, phrase string) float64 {
	lower := strings.ToLower(content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	fraction := float64(matched) / float64(len(terms))
	if len(terms) == 1 {
		return fraction
	}
	rel := 0.75 * fraction
	if strings.Contains(lower, phrase) {
		rel += 0.25
	}
	return rel
}

// lowerWithOffsets lowercases s rune by rune and returns a byte-offset
// table mapping every lowered byte (plus one past the end) back to the
// start of the original rune it came from. Lowercasing does not preserve
// byte length (İ shrinks, Ⱥ grows), so positions found in the lowered text
// must go through the table before slicing the original.
func lowerWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		folded := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(folded); j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(folded)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}

// buildExcerpt cuts a window around the first matching term and wraps every
// match inside it in <mark> tags.
func buildExcerpt(content string, terms []string) string {
	lower, toOrig := lowerWithOffsets(content)
	firstByte := -1
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 {
			if orig := toOrig[i]; firstByte == -1 || orig < firstByte {
				firstByte = orig
			}
		}
	}

	runes := []rune(content)
	center := 0
	if firstByte > 0 {
		center = utf8.RuneCountInString(content[:firstByte])
	}

	start := center - excerptRadius
	if start < 0 {
		start = 0
	}
	end := center + excerptRadius
	if end > len(runes) {
		end = len(runes)
	}

	excerpt := highlightTerms(string(runes[start:end]), terms)
	if start > 0 {
		excerpt = "…" + excerpt
	}
	if end < len(runes) {
		excerpt += "…"
	}
	return excerpt
}

// highlightTerms wraps every case-insensitive term occurrence in <mark>,
// merging overlapping matches into a single tag.
func highlightTerms(text string, terms []string) string {
	lower, toOrig := lowerWithOffsets(text)

	type span struct{ start, end int }
	var spans []span
	for _, term := range terms {
		if term == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lower[from:], term)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(term)
			spans = append(spans, span{start: toOrig[start], end: toOrig[end]})
			from = end
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(text[prev:sp.start])
		b.WriteString("<mark>")
		b.WriteString(text[sp.start:sp.end])
		b.WriteString("</mark>")
		prev = sp.end
	}
	b.WriteString(text[prev:])
	return b.String()
}
