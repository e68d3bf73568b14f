package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger wraps zerolog.Logger to implement the Logger interface.
type ZeroLogger struct {
	zlog *zerolog.Logger
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

// New creates a ZeroLogger writing to stdout. Unknown levels fall back to info.
// If pretty is true, output is formatted for human readability.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithWriter(level, pretty, os.Stdout)
}

// NewWithWriter creates a ZeroLogger writing to w. Tests use it to capture
// report output.
func NewWithWriter(level string, pretty bool, w io.Writer) *ZeroLogger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).With().Timestamp().Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l}
}

// WithContext returns the logger stored in ctx by zerolog, if any.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	if c, ok := ctx.(context.Context); ok && c != nil {
		zl := zerolog.Ctx(c)
		if zl == nil || zl.GetLevel() == zerolog.Disabled {
			return l
		}
		return &ZeroLogger{zlog: zl}
	}
	return l
}

// WithFields returns a logger with additional fields attached to all log entries.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log}
}

// Zerolog exposes the underlying zerolog.Logger, e.g. to attach it to a context.
func (l *ZeroLogger) Zerolog() *zerolog.Logger {
	return l.zlog
}
