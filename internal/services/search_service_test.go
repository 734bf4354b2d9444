package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"convlogger/internal/models"
)

type fakeQuerier struct {
	records []models.Record
	err     error
}

func (f *fakeQuerier) Query(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.records
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func newTestSearchService(records ...models.Record) *SearchService {
	return NewSearchService(&fakeQuerier{records: records}, testScorer())
}

func TestSearchValidation(t *testing.T) {
	svc := newTestSearchService()

	for _, query := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Search(context.Background(), query, "", 10); !errors.Is(err, ErrValidation) {
			t.Errorf("query %q: expected ErrValidation, got %v", query, err)
		}
	}
}

func TestSearchDropsNonMatches(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "hit", Content: "el deploy de staging quedó listo", Timestamp: now},
		models.Record{ID: "miss", Content: "nota sin relación", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "deploy", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "hit" {
		t.Fatalf("expected only the matching record, got %+v", results)
	}
	if results[0].Relevance != 1.0 {
		t.Errorf("expected full single-term relevance, got %.2f", results[0].Relevance)
	}
}

func TestSearchRanksFresherFirst(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "stale", Content: "fallo de deploy en staging", Timestamp: now.Add(-90 * time.Hour)},
		models.Record{ID: "fresh", Content: "fallo de deploy en staging", Timestamp: now.Add(-time.Hour)},
	)

	results, err := svc.Search(context.Background(), "deploy", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Record.ID != "fresh" {
		t.Errorf("expected the fresher record first, got %s", results[0].Record.ID)
	}
}

func TestSearchPhraseOutranksScatteredTerms(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "scattered", Content: "el timeout aparece cuando redis reinicia", Timestamp: now},
		models.Record{ID: "phrase", Content: "vimos un redis timeout en producción", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "redis timeout", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Record.ID != "phrase" {
		t.Errorf("expected the verbatim phrase first, got %s", results[0].Record.ID)
	}
	if results[0].Relevance != 1.0 {
		t.Errorf("expected phrase relevance 1.0, got %.2f", results[0].Relevance)
	}
	if results[1].Relevance != 0.75 {
		t.Errorf("expected scattered relevance 0.75, got %.2f", results[1].Relevance)
	}
}

func TestSearchPartialMatchScoresLower(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "partial", Content: "solo hablamos de redis", Timestamp: now},
		models.Record{ID: "full", Content: "el redis timeout de siempre", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "redis timeout", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Record.ID != "full" {
		t.Errorf("expected the full match first, got %s", results[0].Record.ID)
	}
	if results[1].Relevance != 0.375 {
		t.Errorf("expected partial relevance 0.375, got %.3f", results[1].Relevance)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	now := time.Now().UTC()
	records := make([]models.Record, 10)
	for i := range records {
		records[i] = models.Record{
			ID:        string(rune('a' + i)),
			Content:   "deploy pendiente",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	svc := newTestSearchService(records...)

	results, err := svc.Search(context.Background(), "deploy", "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearchExcerptHighlights(t *testing.T) {
	now := time.Now().UTC()
	padding := strings.Repeat("relleno ", 40)
	svc := newTestSearchService(
		models.Record{ID: "r", Content: padding + "aquí está el deploy fallido " + padding, Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "deploy", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	excerpt := results[0].Excerpt
	if !strings.Contains(excerpt, "<mark>deploy</mark>") {
		t.Errorf("expected highlighted term in excerpt, got %q", excerpt)
	}
	if !strings.HasPrefix(excerpt, "…") || !strings.HasSuffix(excerpt, "…") {
		t.Errorf("expected ellipses around a mid-content excerpt, got %q", excerpt)
	}
	if runes := len([]rune(excerpt)); runes > 150 {
		t.Errorf("excerpt longer than the window allows: %d runes", runes)
	}
}

func TestSearchExcerptCaseInsensitive(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "r", Content: "Deploy terminado sin problemas", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "deploy", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(results[0].Excerpt, "<mark>Deploy</mark>") {
		t.Errorf("expected original casing preserved inside the mark, got %q", results[0].Excerpt)
	}
}

func TestHighlightTermsSurvivesGrowingCaseFold(t *testing.T) {
	// Ⱥ lowercases to ⱥ, one byte longer, so positions found in the lowered
	// text do not line up with the original bytes.
	text := strings.Repeat("Ⱥ", 10) + " database"

	got := highlightTerms(text, []string{"database"})

	want := strings.Repeat("Ⱥ", 10) + " <mark>database</mark>"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchExcerptSurvivesShrinkingCaseFold(t *testing.T) {
	// İ lowercases to a shorter byte sequence; the excerpt must still wrap
	// the actual term and stay valid UTF-8.
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "r", Content: strings.Repeat("İ", 40) + " database timeout", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "database", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	excerpt := results[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Errorf("excerpt is not valid UTF-8: %q", excerpt)
	}
	if !strings.Contains(excerpt, "<mark>database</mark>") {
		t.Errorf("expected the term highlighted, got %q", excerpt)
	}
}

func TestSearchHighlightsCaseFoldedMatch(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestSearchService(
		models.Record{ID: "r", Content: "İstanbul deploy listo", Timestamp: now},
	)

	results, err := svc.Search(context.Background(), "İSTANBUL", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Excerpt, "<mark>İstanbul</mark>") {
		t.Errorf("expected the original casing wrapped, got %q", results[0].Excerpt)
	}
}

func TestSearchEmptyStoreGivesNoResults(t *testing.T) {
	svc := NewSearchService(&fakeQuerier{records: nil}, testScorer())

	results, err := svc.Search(context.Background(), "deploy", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
