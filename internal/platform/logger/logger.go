package logger

import (
	"log/slog"
	"os"
)

// New returns the shared structured logger. Text output keeps local
// development readable; swap the handler for JSON when shipping logs.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
