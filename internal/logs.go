package internal

import (
	"log/slog"
	"os"
	"strings"
)

// LoggerFromString builds the application logger from the configured level.
// Unknown levels fall back to INFO rather than failing startup.
func LoggerFromString(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
