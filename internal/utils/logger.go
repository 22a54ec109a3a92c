package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// NewLogger builds the role's logger. Output always goes to stdout; with a
// directory it is also appended to <dir>/<role>.log. The returned closer
// releases the log file and is safe to call when no file was opened.
func NewLogger(role, level, format, dir string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if format == "console" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	var closer io.Closer = nopCloser{}
	writer := stdout
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, role+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = zerolog.MultiLevelWriter(stdout, f)
		closer = f
	}

	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Str("role", role).Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
