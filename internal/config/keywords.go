package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// CategoryRule maps a session category to the keywords that select it.
// Rules are evaluated in order; the first match wins.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Keywords holds the phrase lists driving the lexical classifier.
// Matching is case-insensitive substring matching, except code markers
// which match case-sensitively.
type Keywords struct {
	ResolutionPhrases []string       `yaml:"resolution_phrases"`
	OpenIssuePhrases  []string       `yaml:"open_issue_phrases"`
	ErrorKeywords     []string       `yaml:"error_keywords"`
	QuestionWords     []string       `yaml:"question_words"`
	CodeMarkers       []string       `yaml:"code_markers"`
	Categories        []CategoryRule `yaml:"categories"`
}

// DefaultKeywords returns the built-in Spanish/English phrase lists.
// They are used when no keywords file is present and as the fallback
// when the file fails to parse.
func DefaultKeywords() *Keywords {
	return &Keywords{
		ResolutionPhrases: []string{
			"gracias", "perfecto", "funcionando", "funciona", "resuelto",
			"solucionado", "listo", "thanks", "thank you", "perfect",
			"works now", "working now", "solved", "resolved", "fixed", "done",
		},
		OpenIssuePhrases: []string{
			"todavía", "todavia", "aún no", "aun no", "sigue sin", "no funciona",
			"error", "falla", "still not", "still broken", "doesn't work",
			"not working", "failing", "broken",
		},
		ErrorKeywords: []string{
			"error", "exception", "traceback", "panic", "fatal", "failed",
			"falla", "fallo",
		},
		QuestionWords: []string{
			"how do", "how can", "why", "what is", "cómo", "como puedo",
			"por qué", "qué es",
		},
		CodeMarkers: []string{
			"```", "func ", "def ", "import ", "class ", "const ", "var ",
			"#!/", "SELECT ", "{};",
		},
		Categories: []CategoryRule{
			{Name: "debugging", Keywords: []string{"error", "bug", "fix", "crash", "traceback", "falla", "exception"}},
			{Name: "configuration", Keywords: []string{"config", "setup", "install", "deploy", "env", "docker", "configurar"}},
			{Name: "development", Keywords: []string{"implement", "refactor", "build", "create", "function", "endpoint", "implementar"}},
			{Name: "learning", Keywords: []string{"how do", "how does", "what is", "explain", "cómo", "qué es"}},
		},
	}
}

// LoadKeywords reads a keywords YAML file. Missing lists fall back to the
// built-in defaults so a partial file only overrides what it names.
func LoadKeywords(path string) (*Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}

	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("failed to parse keywords YAML: %w", err)
	}

	defaults := DefaultKeywords()
	if len(kw.ResolutionPhrases) == 0 {
		kw.ResolutionPhrases = defaults.ResolutionPhrases
	}
	if len(kw.OpenIssuePhrases) == 0 {
		kw.OpenIssuePhrases = defaults.OpenIssuePhrases
	}
	if len(kw.ErrorKeywords) == 0 {
		kw.ErrorKeywords = defaults.ErrorKeywords
	}
	if len(kw.QuestionWords) == 0 {
		kw.QuestionWords = defaults.QuestionWords
	}
	if len(kw.CodeMarkers) == 0 {
		kw.CodeMarkers = defaults.CodeMarkers
	}
	if len(kw.Categories) == 0 {
		kw.Categories = defaults.Categories
	}

	return &kw, nil
}

// LoadKeywordsOrDefault loads the keywords file, falling back to the
// built-in lists when the file is absent or unreadable.
func LoadKeywordsOrDefault(path string) *Keywords {
	kw, err := LoadKeywords(path)
	if err != nil {
		log.Printf("⚠️  Using built-in keyword lists (%v)", err)
		return DefaultKeywords()
	}
	log.Printf("✅ Keyword lists loaded from %s", path)
	return kw
}

// WatchKeywords watches the keywords file for changes and invokes onReload
// with the freshly parsed lists. A broken file keeps the previous lists.
// Blocks until the watcher fails; run it in its own goroutine.
func WatchKeywords(path string, onReload func(*Keywords)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create keywords watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		log.Printf("⚠️  Failed to resolve keywords path %s: %v", path, err)
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", path)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					kw, err := LoadKeywords(path)
					if err != nil {
						log.Printf("❌ Keywords reload failed, keeping previous lists: %v", err)
						return
					}
					log.Printf("🔄 Keywords reloaded from %s", path)
					onReload(kw)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Keywords watcher error: %v", err)
		}
	}
}
