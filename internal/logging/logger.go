// Package logging builds the application's slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the application logger. Output goes to Stderr so composed
// expressions and JSON-RPC traffic on Stdout stay clean, and the "error"
// attribute key is normalized to "err".
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: normalizeKeys,
	}))
}

func normalizeKeys(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
