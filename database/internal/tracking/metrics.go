package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dbMeterName = "go-bricks-lazyload/database"

	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"
	metricPoolInUse    = "db.connection.pool.active"
	metricPoolIdle     = "db.connection.pool.idle"
)

// dbInstruments are resolved from the global MeterProvider on first use.
type dbInstruments struct {
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
}

var (
	instrumentsMu sync.Mutex
	instruments   *dbInstruments
)

// logMetricError reports instrument creation failures to stderr. Metrics are
// best effort and never fail a statement.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

func getInstruments() *dbInstruments {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()

	if instruments != nil {
		return instruments
	}

	meter := otel.Meter(dbMeterName)
	inst := &dbInstruments{}
	var err error

	inst.calls, err = meter.Int64Counter(metricDBCalls,
		metric.WithDescription("Total number of database client calls"))
	logMetricError(metricDBCalls, err)

	inst.duration, err = meter.Float64Histogram(metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(metricDBDuration, err)

	inst.rowsAffected, err = meter.Int64Counter(metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"))
	logMetricError(metricRowsAffected, err)

	instruments = inst
	return inst
}

// resetInstruments forces the next statement to resolve instruments again.
// Tests call it after swapping the global MeterProvider.
func resetInstruments() {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	instruments = nil
}

func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	inst := getInstruments()
	isError := err != nil && !errors.Is(err, sql.ErrNoRows)

	commonAttrs := []attribute.KeyValue{
		dbSystem(tc.Vendor),
		attribute.String("db.operation.name", extractDBOperation(query)),
		attribute.String("db.sql.table", extractTableName(query)),
	}

	if inst.calls != nil {
		attrs := append(append([]attribute.KeyValue(nil), commonAttrs...), attribute.Bool("error", isError))
		inst.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, float64(duration.Nanoseconds())/1e6, metric.WithAttributes(commonAttrs...))
	}
	if inst.rowsAffected != nil && rowsAffected > 0 && !isError {
		inst.rowsAffected.Add(ctx, rowsAffected, metric.WithAttributes(commonAttrs...))
	}
}

var (
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
)

// extractTableName returns the lowercase primary table of a DML statement or
// "unknown". JOINs resolve to the first table.
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	upper := strings.ToUpper(query)

	var pattern *regexp.Regexp
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		pattern = selectTableRegex
	case strings.HasPrefix(upper, "INSERT"):
		pattern = insertTableRegex
	case strings.HasPrefix(upper, "UPDATE"):
		pattern = updateTableRegex
	case strings.HasPrefix(upper, "DELETE"):
		pattern = deleteTableRegex
	default:
		return "unknown"
	}

	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return "unknown"
}

// RegisterConnectionPoolMetrics registers observable gauges reporting the
// in-use and idle counts of conn's pool. The returned function unregisters them.
func RegisterConnectionPoolMetrics(conn interface {
	Stats() (map[string]any, error)
}, vendor string) func() {
	meter := otel.Meter(dbMeterName)

	inUse, err := meter.Int64ObservableGauge(metricPoolInUse, metric.WithDescription("Number of active database connections"))
	logMetricError(metricPoolInUse, err)
	idle, err := meter.Int64ObservableGauge(metricPoolIdle, metric.WithDescription("Number of idle database connections"))
	logMetricError(metricPoolIdle, err)
	if inUse == nil || idle == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(dbSystem(vendor))
	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats, statsErr := conn.Stats()
		if statsErr != nil {
			return nil
		}
		o.ObserveInt64(inUse, asInt64(stats["in_use"]), attrs)
		o.ObserveInt64(idle, asInt64(stats["idle"]), attrs)
		return nil
	}, inUse, idle)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return func() {}
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}
