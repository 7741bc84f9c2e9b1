package serve

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the serve-mode logger: human-readable records on
// stderr plus, when logPath is non-empty, JSON records appended to a log
// file. Stdout is reserved for the JSON-RPC transport. The returned
// closer owns the log file.
func NewLogger(level slog.Level, logPath string) (*slog.Logger, io.Closer, error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if logPath == "" {
		return slog.New(stderrHandler), nopCloser{}, nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})

	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
