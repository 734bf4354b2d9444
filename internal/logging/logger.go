package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSession returns a logger with conversation context fields attached.
// Use this for all logging tied to a specific session's records.
func WithSession(sessionID, projectName string) *slog.Logger {
	return slog.With(
		"session_id", sessionID,
		"project_name", projectName,
	)
}

// WithJob returns a logger scoped to a background job run.
func WithJob(jobName string) *slog.Logger {
	return slog.With("job", jobName)
}
