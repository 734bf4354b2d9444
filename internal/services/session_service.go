package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"convlogger/internal/models"
)

const (
	sessionMetaCachePrefix = "session:meta:"

	// maxDescriptionRunes bounds the generated session description.
	maxDescriptionRunes = 120
)

// SessionMetaStore persists the per-session description metadata.
type SessionMetaStore interface {
	UpsertSessionMeta(ctx context.Context, meta models.SessionMeta) error
	GetSessionMeta(ctx context.Context, sessionID string) (*models.SessionMeta, error)
	SessionIDs(ctx context.Context, project string) ([]string, error)
}

// SessionRecordReader supplies a session's records in chronological order.
type SessionRecordReader interface {
	SessionRecords(ctx context.Context, sessionID string) ([]models.Record, error)
}

// SessionService derives a description, category and resolution state for
// conversations. Analysis runs through the request pool and results are
// memoized, so repeated dashboard loads do not re-scan sessions.
type SessionService struct {
	meta       SessionMetaStore
	records    SessionRecordReader
	classifier ContentClassifier
	scorer     *Scorer
	cache      *TTLCache
	pool       *RequestPool
	metaTTL    time.Duration
}

// NewSessionService wires the session analyzer.
func NewSessionService(meta SessionMetaStore, records SessionRecordReader, classifier ContentClassifier, scorer *Scorer, cache *TTLCache, pool *RequestPool, metaTTL time.Duration) *SessionService {
	return &SessionService{
		meta:       meta,
		records:    records,
		classifier: classifier,
		scorer:     scorer,
		cache:      cache,
		pool:       pool,
		metaTTL:    metaTTL,
	}
}

// Describe analyzes one session. Unknown sessions yield an empty meta with
// a nil error; only an exhausted pool or a dead context surface as errors.
func (s *SessionService) Describe(ctx context.Context, sessionID string) (models.SessionMeta, error) {
	if sessionID == "" {
		return models.SessionMeta{}, fmt.Errorf("%w: session id is required", ErrValidation)
	}

	cacheKey := sessionMetaCachePrefix + sessionID
	if cached, found := s.cache.Get(cacheKey); found {
		if meta, ok := cached.(models.SessionMeta); ok {
			return meta, nil
		}
	}

	value, err := s.pool.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return s.analyze(ctx, sessionID)
	})
	if err != nil {
		return models.SessionMeta{}, err
	}

	meta := value.(models.SessionMeta)
	if meta.RecordCount > 0 {
		s.cache.SetWithTTL(cacheKey, meta, s.metaTTL)
	}
	return meta, nil
}

// DescribeAll analyzes every known session, optionally scoped to a project.
// The request pool bounds how many analyses run at once.
func (s *SessionService) DescribeAll(ctx context.Context, project string) ([]models.SessionMeta, error) {
	ids, err := s.meta.SessionIDs(ctx, project)
	if err != nil {
		log.Printf("⚠️ [SESSIONS] Listing session ids failed: %v", err)
		return []models.SessionMeta{}, nil
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		metas = make([]models.SessionMeta, 0, len(ids))
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := s.Describe(ctx, id)
			if err != nil {
				log.Printf("⚠️ [SESSIONS] Describe %s failed: %v", id, err)
				return
			}
			mu.Lock()
			metas = append(metas, meta)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].SessionID < metas[j].SessionID
	})
	return metas, nil
}

// analyze builds the session meta from its records.
func (s *SessionService) analyze(ctx context.Context, sessionID string) (models.SessionMeta, error) {
	records, err := s.records.SessionRecords(ctx, sessionID)
	if err != nil {
		return models.SessionMeta{}, err
	}

	if len(records) == 0 {
		// analyzed before the records aged out of retention?
		if stored, err := s.meta.GetSessionMeta(ctx, sessionID); err == nil && stored != nil {
			return *stored, nil
		}
		return models.SessionMeta{SessionID: sessionID}, nil
	}

	meta := models.SessionMeta{
		SessionID:   sessionID,
		ProjectName: records[0].ProjectName,
		Description: describeConversation(records),
		Category:    s.classifier.Categorize(joinContents(records)),
		Resolved:    s.scorer.IsResolved(records),
		RecordCount: len(records),
		AnalyzedAt:  time.Now().UTC(),
	}

	if err := s.meta.UpsertSessionMeta(ctx, meta); err != nil {
		log.Printf("⚠️ [SESSIONS] Persisting meta for %s failed: %v", sessionID, err)
	}
	return meta, nil
}

// describeConversation takes the opening user turn as the session summary,
// falling back to whatever came first.
func describeConversation(records []models.Record) string {
	for _, rec := range records {
		if rec.MessageType == models.MessageTypeUser && strings.TrimSpace(rec.Content) != "" {
			return truncateOnWord(rec.Content, maxDescriptionRunes)
		}
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.Content) != "" {
			return truncateOnWord(rec.Content, maxDescriptionRunes)
		}
	}
	return ""
}

func joinContents(records []models.Record) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// truncateOnWord cuts at the last space before the limit so descriptions
// do not end mid-word.
func truncateOnWord(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	cut := string([]rune(text)[:maxRunes])
	if i := strings.LastIndex(cut, " "); i > maxRunes/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
