package logger

import (
	"log/slog"
	"os"
)

// NewTestLogger creates a logger for tests. WARN by default; set TEST_DEBUG
// to see debug output.
func NewTestLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("TEST_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
