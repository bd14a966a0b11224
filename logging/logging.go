package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger at the given level. Components receive the
// logger explicitly; there is no package-level default.
func New(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h)
}

// Discard returns a logger that drops everything. Used by tests and as a
// fallback when a component is constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
