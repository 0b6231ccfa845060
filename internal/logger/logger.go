package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/segyhp/loan-ledger/internal/config"
)

// NewLogger creates a slog.Logger writing to stdout at the configured level
func NewLogger(cfg *config.Config) *slog.Logger {
	return New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
}

// New builds a logger on w. Unknown levels fall back to info, unknown formats
// to JSON.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: parseLevel(level) == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
