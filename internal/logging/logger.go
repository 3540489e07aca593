package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted by NewLogger.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the name of the log file created inside the log directory.
const FileName = "gladoid.log"

// closer is shared between a root logger and all of its children so that
// closing any of them releases the writer exactly once.
type closer struct {
	once sync.Once
	w    io.Closer
	err  error
}

func (c *closer) close() error {
	if c == nil || c.w == nil {
		return nil
	}
	c.once.Do(func() {
		c.err = c.w.Close()
	})
	return c.err
}

// Logger is a JSON structured logger with persistent context attributes.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer *closer
}

// NewLogger creates a Logger writing JSON lines to {dir}/gladoid.log,
// rotated according to rotation. If dir is empty the logger writes to stderr
// and Close is a no-op.
func NewLogger(dir string, level string, rotation RotationConfig) (*Logger, error) {
	var (
		w io.Writer = os.Stderr
		c *closer
	)

	if dir != "" {
		rw, err := NewRotatingWriter(filepath.Join(dir, FileName), rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
		w = rw
		c = &closer{w: rw}
	}

	return newLogger(w, level, c), nil
}

// NewWithWriter creates a Logger over an arbitrary writer. Close does not
// close w.
func NewWithWriter(w io.Writer, level string) *Logger {
	return newLogger(w, level, nil)
}

func newLogger(w io.Writer, level string, c *closer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	return &Logger{logger: slog.New(handler), closer: c}
}

func slogLevel(level string) slog.Level {
	switch ParseLevel(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSession returns a child Logger that tags every entry with session_id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With("session_id", sessionID)
}

// WithParticipant returns a child Logger that tags every entry with participant.
func (l *Logger) WithParticipant(id int) *Logger {
	return l.With("participant", id)
}

// WithComponent returns a child Logger that tags every entry with component,
// e.g. "driver", "gate", "ws".
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// With returns a child Logger carrying arbitrary key-value attributes.
// Keys that are not strings are skipped along with their value.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	attrs := make([]any, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			continue
		}
		attrs = append(attrs, args[i], args[i+1])
	}
	if len(attrs) == 0 {
		return l
	}

	return &Logger{logger: l.logger.With(attrs...), closer: l.closer}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Slog exposes the underlying slog.Logger for libraries that take one.
func (l *Logger) Slog() *slog.Logger { return l.logger }

// Close releases the log file. Closing a child closes the shared file; further
// calls are no-ops.
func (l *Logger) Close() error {
	return l.closer.close()
}

// NopLogger returns a Logger that discards all output.
func NopLogger() *Logger {
	return newLogger(io.Discard, LevelError, nil)
}

// ParseLevel normalizes a level string, returning LevelInfo for unknown values.
func ParseLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	default:
		return LevelInfo
	}
}

// ValidLevels returns the accepted level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
