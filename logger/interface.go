// Package logger defines the structured logging contract used across the module
// and a zerolog-backed implementation of it.
package logger

import "time"

// Logger is the structured logger handed to every component. Report lines,
// per-event lazy-load lines and pipeline diagnostics all go through it.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	WithContext(ctx any) Logger
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single log entry under construction.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Float64(key string, value float64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
}
