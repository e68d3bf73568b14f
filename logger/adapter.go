package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter adapts zerolog events to the LogEvent interface.
type LogEventAdapter struct {
	event *zerolog.Event
}

// Msg logs the message
func (lea *LogEventAdapter) Msg(msg string) {
	lea.event.Msg(msg)
}

// Msgf logs a formatted message
func (lea *LogEventAdapter) Msgf(format string, args ...any) {
	lea.event.Msgf(format, args...)
}

// Err adds an error to the log event
func (lea *LogEventAdapter) Err(err error) LogEvent {
	return &LogEventAdapter{event: lea.event.Err(err)}
}

// Str adds a string field to the log event
func (lea *LogEventAdapter) Str(key, value string) LogEvent {
	return &LogEventAdapter{event: lea.event.Str(key, value)}
}

// Int adds an integer field to the log event
func (lea *LogEventAdapter) Int(key string, value int) LogEvent {
	return &LogEventAdapter{event: lea.event.Int(key, value)}
}

// Int64 adds an int64 field to the log event
func (lea *LogEventAdapter) Int64(key string, value int64) LogEvent {
	return &LogEventAdapter{event: lea.event.Int64(key, value)}
}

// Float64 adds a float field to the log event
func (lea *LogEventAdapter) Float64(key string, value float64) LogEvent {
	return &LogEventAdapter{event: lea.event.Float64(key, value)}
}

// Bool adds a boolean field to the log event
func (lea *LogEventAdapter) Bool(key string, value bool) LogEvent {
	return &LogEventAdapter{event: lea.event.Bool(key, value)}
}

// Dur adds a duration field to the log event
func (lea *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	return &LogEventAdapter{event: lea.event.Dur(key, d)}
}

// Interface adds an arbitrary value to the log event
func (lea *LogEventAdapter) Interface(key string, i any) LogEvent {
	return &LogEventAdapter{event: lea.event.Interface(key, i)}
}

// Info creates an info-level log event
func (l *ZeroLogger) Info() LogEvent {
	return &LogEventAdapter{event: l.zlog.Info()}
}

// Error creates an error-level log event
func (l *ZeroLogger) Error() LogEvent {
	return &LogEventAdapter{event: l.zlog.Error()}
}

// Debug creates a debug-level log event
func (l *ZeroLogger) Debug() LogEvent {
	return &LogEventAdapter{event: l.zlog.Debug()}
}

// Warn creates a warning-level log event
func (l *ZeroLogger) Warn() LogEvent {
	return &LogEventAdapter{event: l.zlog.Warn()}
}
