package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/vizpipe/vizpipe/internal/logging"
)

// ReadInput returns the contents of path, or stdin when path is "-" or empty.
func ReadInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// IsTTY reports whether stdout is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RenderMarkdown renders markdown for the terminal. On a plain pipe, or when
// the terminal reports no color support, the raw markdown passes through
// unchanged so output stays grep-able.
func RenderMarkdown(md string) string {
	if !IsTTY() || termenv.ColorProfile() == termenv.Ascii {
		return md
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// NewLogger builds the application logger from a --log-level flag value.
// Unknown levels fall back to a no-op logger.
func NewLogger(level string) *slog.Logger {
	switch strings.ToLower(level) {
	case "debug":
		return logging.New(slog.LevelDebug)
	case "info":
		return logging.New(slog.LevelInfo)
	case "warn":
		return logging.New(slog.LevelWarn)
	case "error":
		return logging.New(slog.LevelError)
	default:
		return logging.NewNop()
	}
}
