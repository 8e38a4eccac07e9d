// Package logging configures the CLI's slog output from the [log] config section.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/efprojects/kitten-ipc/internal/config"
)

// AutoFile selects the XDG state directory as the log file location.
const AutoFile = "auto"

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a logger for cfg. With a log file configured it writes JSONL to
// that file; otherwise it writes to stderr, as text when stderr is a terminal
// and format is "auto".
func New(cfg config.LogConfig, stderr io.Writer) (Runtime, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return Runtime{}, err
	}
	opts := &slog.HandlerOptions{Level: level}

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		return Runtime{Logger: slog.New(streamHandler(stderr, cfg.Format, opts))}, nil
	}

	path := file
	if file == AutoFile {
		path, err = resolveLogPath()
		if err != nil {
			return Runtime{}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	logger := slog.New(slog.NewJSONHandler(f, opts))
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

func streamHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "json":
		return slog.NewJSONHandler(w, opts)
	}
	if isTerminal(w) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", raw, err)
	}
	return level, nil
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "kittenipc", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "kittenipc", "log.jsonl"), nil
}
