package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger writes to stderr so the console UI keeps stdout to itself.
func NewLogger(env, level string) *slog.Logger {
	return NewLoggerTo(os.Stderr, env, level)
}

// NewLoggerTo uses a colour tint handler for dev/local and JSON elsewhere.
func NewLoggerTo(w io.Writer, env, level string) *slog.Logger {
	lvl := ParseLevel(level)
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: true,
		}))
	}
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
