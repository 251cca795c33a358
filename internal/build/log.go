package build

import (
	"log/slog"
	"os"
)

// Version is the semantic version of the binaries, overridable at link
// time.
var Version = "0.1.0-dev"

// SetupLogging builds the process logger: console always, plus a
// rotating log file when logDir is non-empty. The returned closer
// flushes the file rotator; it is a no-op for console-only setups.
func SetupLogging(logDir string, debug bool) (*slog.Logger, func() error,
	error) {

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	if logDir == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	writer := NewRotatingLogWriter()
	cfg := DefaultLogRotatorConfig()
	cfg.LogDir = logDir
	if err := writer.InitLogRotator(cfg); err != nil {
		return nil, nil, err
	}

	file := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(NewHandlerSet(console, file))

	return logger, writer.Close, nil
}
