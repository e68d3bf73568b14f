package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	// Default operation type for unidentified queries
	defaultOperation = "query"

	dbTracerName      = "go-bricks-lazyload/database"
	maxDBQueryAttrLen = 2000
)

// TrackDBOperation records one completed statement.
//
// It is a no-op when tc or its Logger is nil. It bumps the request counters
// carried by ctx, emits a client span starting at start, records metrics and
// writes a log line: errors at error level (sql.ErrNoRows at debug), statements
// slower than the configured threshold at warn, everything else at debug.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	elapsed := time.Since(start)

	if ctx != nil {
		logger.IncrementDBCounter(ctx)
		logger.AddDBElapsed(ctx, elapsed.Nanoseconds())
		createDBSpan(ctx, tc, query, start, err)
		recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)
	}

	logEvent := tc.Logger.WithContext(ctx).WithFields(map[string]any{
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"query":       TruncateString(query, tc.Settings.MaxQueryLength),
	})

	if tc.Settings.LogParameters && len(args) > 0 {
		logEvent = logEvent.WithFields(map[string]any{
			"args": SanitizeArgs(args, tc.Settings.MaxQueryLength),
		})
	}

	switch tc.Settings.outcome(elapsed, err) {
	case outcomeNoRows:
		logEvent.Debug().Msg("Database operation returned no rows")
	case outcomeFailed:
		logEvent.Error().Err(err).Msg("Database operation error")
	case outcomeSlow:
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

// extractRowsAffected returns result.RowsAffected(), or 0 when it is unavailable.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}

	affected, affErr := result.RowsAffected()
	if affErr != nil {
		return 0
	}

	return affected
}

// TruncateString truncates value to at most maxLen runes, ending with "..."
// when maxLen leaves room for it. maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args safe to log: strings truncated, byte
// slices replaced by "<bytes len=N>", everything else formatted with %v.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan emits a client span covering the statement.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := []attribute.KeyValue{
		dbSystem(tc.Vendor),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// extractDBOperation returns the lowercase leading SQL verb, or "query".
func extractDBOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return defaultOperation
	}

	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "create", "drop", "alter", "truncate":
		return operation
	default:
		return defaultOperation
	}
}

// dbSystem maps a vendor identifier onto the OTel db.system.name attribute.
func dbSystem(vendor string) attribute.KeyValue {
	switch v := strings.ToLower(vendor); v {
	case "postgres", "postgresql":
		return semconv.DBSystemNameKey.String("postgresql")
	case "oracle":
		return semconv.DBSystemNameKey.String("oracle.db")
	default:
		return semconv.DBSystemNameKey.String(v)
	}
}
