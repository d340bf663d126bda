package log

import (
	"log/slog"
	"strings"
)

// LevelFromString parses a slog level from its configuration string. The
// match is case-insensitive. Unrecognised strings return LevelInfo.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
