package tracking

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	levelDebug = "debug"
	levelError = "error"
	levelInfo  = "info"
	levelWarn  = "warn"

	testQuerySelectInvoices = "SELECT id, number FROM invoices"
	testQueryInsertInvoice  = "INSERT INTO invoices (number) VALUES ($1)"
)

// sqlConn is a minimal types.Interface over a *sql.DB backed by sqlmock.
type sqlConn struct {
	db *sql.DB
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *sqlConn) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *sqlConn) Stats() (map[string]any, error) {
	s := c.db.Stats()
	return map[string]any{"in_use": s.InUse, "idle": s.Idle}, nil
}

func (c *sqlConn) Close() error { return c.db.Close() }

func (c *sqlConn) DatabaseType() string { return types.PostgreSQL }

func newMockConn(t *testing.T) (*sqlConn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &sqlConn{db: db}, mock
}

type eventRecord struct {
	Level  string
	Msg    string
	Err    error
	Fields map[string]any
}

// recordingLogger captures every event so tests can assert on levels and fields.
type recordingLogger struct {
	mu     *sync.Mutex
	events *[]*eventRecord
	fields map[string]any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, events: &[]*eventRecord{}, fields: map[string]any{}}
}

func (l *recordingLogger) newEvent(level string) logger.LogEvent {
	record := &eventRecord{Level: level, Fields: map[string]any{}}
	for k, v := range l.fields {
		record.Fields[k] = v
	}
	l.mu.Lock()
	*l.events = append(*l.events, record)
	l.mu.Unlock()
	return &recordingEvent{record: record}
}

func (l *recordingLogger) Info() logger.LogEvent  { return l.newEvent(levelInfo) }
func (l *recordingLogger) Error() logger.LogEvent { return l.newEvent(levelError) }
func (l *recordingLogger) Debug() logger.LogEvent { return l.newEvent(levelDebug) }
func (l *recordingLogger) Warn() logger.LogEvent  { return l.newEvent(levelWarn) }

func (l *recordingLogger) WithContext(_ any) logger.Logger { return l }

func (l *recordingLogger) WithFields(fields map[string]any) logger.Logger {
	cloned := &recordingLogger{mu: l.mu, events: l.events, fields: map[string]any{}}
	for k, v := range l.fields {
		cloned.fields[k] = v
	}
	for k, v := range fields {
		cloned.fields[k] = v
	}
	return cloned
}

func (l *recordingLogger) all() []*eventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*eventRecord(nil), *l.events...)
}

type recordingEvent struct {
	record *eventRecord
}

func (e *recordingEvent) Msg(msg string) { e.record.Msg = msg }
func (e *recordingEvent) Msgf(format string, args ...any) {
	e.record.Msg = format
	e.record.Fields["_args"] = args
}
func (e *recordingEvent) Err(err error) logger.LogEvent { e.record.Err = err; return e }
func (e *recordingEvent) Str(k, v string) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Int(k string, v int) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Int64(k string, v int64) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Float64(k string, v float64) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Bool(k string, v bool) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Dur(k string, v time.Duration) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
func (e *recordingEvent) Interface(k string, v any) logger.LogEvent {
	e.record.Fields[k] = v
	return e
}
